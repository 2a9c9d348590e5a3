package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLeaseSweeper はLeaseSweeperのモック
type MockLeaseSweeper struct {
	mock.Mock
}

func (m *MockLeaseSweeper) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewExpiredLeaseSweeper(t *testing.T) {
	mockService := new(MockLeaseSweeper)
	interval := 1 * time.Minute

	sweeper := NewExpiredLeaseSweeper(mockService, interval)

	assert.NotNil(t, sweeper)
	assert.Equal(t, interval, sweeper.interval)
	assert.NotNil(t, sweeper.stopCh)
	assert.NotNil(t, sweeper.doneCh)

	select {
	case <-sweeper.stopCh:
		t.Fatal("stopCh should not be closed initially")
	default:
	}
}

func TestExpiredLeaseSweeper_Sweep(t *testing.T) {
	tests := []struct {
		name  string
		count int
		err   error
	}{
		{"回収対象がある", 5, nil},
		{"回収対象がない", 0, nil},
		{"エラーでもパニックしない", 0, errors.New("store unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockLeaseSweeper)
			mockService.On("SweepExpired", mock.Anything).Return(tt.count, tt.err)
			sweeper := NewExpiredLeaseSweeper(mockService, time.Minute)

			assert.NotPanics(t, func() { sweeper.sweep(context.Background()) })
			mockService.AssertExpectations(t)
		})
	}
}

func TestExpiredLeaseSweeper_StartStop(t *testing.T) {
	t.Run("Stopで停止する", func(t *testing.T) {
		mockService := new(MockLeaseSweeper)
		mockService.On("SweepExpired", mock.Anything).Return(0, nil)
		sweeper := NewExpiredLeaseSweeper(mockService, 10*time.Millisecond)

		go sweeper.Start(context.Background())
		time.Sleep(50 * time.Millisecond)

		done := make(chan struct{})
		go func() {
			sweeper.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return")
		}
		assert.GreaterOrEqual(t, len(mockService.Calls), 1)
	})

	t.Run("コンテキストのキャンセルで停止する", func(t *testing.T) {
		mockService := new(MockLeaseSweeper)
		mockService.On("SweepExpired", mock.Anything).Return(0, nil).Maybe()
		sweeper := NewExpiredLeaseSweeper(mockService, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		go sweeper.Start(ctx)
		cancel()

		select {
		case <-sweeper.doneCh:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop on cancel")
		}
		mockService.AssertNotCalled(t, "SweepExpired", mock.Anything)
	})
}
