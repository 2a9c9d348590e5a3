package seat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

func heldSeat(session string, until time.Time) *Seat {
	s := NewSeat("A", 1, 1, 1500)
	s.State = StateHeld
	s.HoldBy = session
	s.HoldUntil = &until
	return s
}

func TestNewSeat(t *testing.T) {
	s := NewSeat("A", 3, 7, 2500.5)

	assert.Equal(t, "A", s.Sector)
	assert.Equal(t, 3, s.Row)
	assert.Equal(t, 7, s.Number)
	assert.Equal(t, 2500.5, s.Price)
	assert.Equal(t, StateFree, s.State)
	assert.Nil(t, s.HoldUntil)
	assert.Empty(t, s.HoldBy)
	assert.Equal(t, 0, s.Version)
	require.NoError(t, s.CheckLeaseInvariant())
}

func TestParseState(t *testing.T) {
	tests := []struct {
		input  string
		want   State
		wantOK bool
	}{
		{"free", StateFree, true},
		{"held", StateHeld, true},
		{"pending_confirmation", StatePendingConfirmation, true},
		{"occupied", StateOccupied, true},
		{"Libre", StateFree, true},
		{"Hold", StateHeld, true},
		{"Pendiente de confirmación", StatePendingConfirmation, true},
		{" Ocupado ", StateOccupied, true},
		{"", StateFree, false},
		{"broken", StateFree, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseState(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSeat_Hold(t *testing.T) {
	t.Run("空席を仮押さえできる", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)

		err := s.Hold("s1", baseTime, DefaultHoldTTL)

		require.NoError(t, err)
		assert.Equal(t, StateHeld, s.State)
		assert.Equal(t, "s1", s.HoldBy)
		require.NotNil(t, s.HoldUntil)
		assert.Equal(t, baseTime.Add(10*time.Minute), *s.HoldUntil)
		assert.Equal(t, baseTime, s.LastUpdate)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("同じセッションは期限を延長できる", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))

		err := s.Hold("s1", baseTime.Add(5*time.Minute), DefaultHoldTTL)

		require.NoError(t, err)
		assert.Equal(t, baseTime.Add(15*time.Minute), *s.HoldUntil)
	})

	t.Run("holdBy が空なら誰でも仮押さえできる", func(t *testing.T) {
		s := heldSeat("", baseTime.Add(time.Minute))

		err := s.Hold("s2", baseTime, DefaultHoldTTL)

		require.NoError(t, err)
		assert.Equal(t, "s2", s.HoldBy)
	})

	t.Run("他セッションの仮押さえは拒否", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))

		err := s.Hold("s2", baseTime, DefaultHoldTTL)

		assert.ErrorIs(t, err, ErrSeatHeldByAnother)
		assert.Equal(t, "s1", s.HoldBy)
	})

	t.Run("期限切れの他セッションの仮押さえは取得できる", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(-time.Second))

		err := s.Hold("s2", baseTime, DefaultHoldTTL)

		require.NoError(t, err)
		assert.Equal(t, "s2", s.HoldBy)
		assert.Equal(t, baseTime.Add(10*time.Minute), *s.HoldUntil)
	})

	t.Run("期限切れの確認待ちは取得でき購入者名を消す", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(-time.Second))
		s.State = StatePendingConfirmation
		s.BuyerName = "Jane Doe"

		err := s.Hold("s2", baseTime, DefaultHoldTTL)

		require.NoError(t, err)
		assert.Equal(t, StateHeld, s.State)
		assert.Equal(t, "s2", s.HoldBy)
		assert.Empty(t, s.BuyerName)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("占有済みは拒否", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)
		s.State = StateOccupied

		err := s.Hold("s1", baseTime, DefaultHoldTTL)

		assert.ErrorIs(t, err, ErrSeatOccupied)
		assert.Equal(t, StateOccupied, s.State)
	})

	t.Run("他セッションの確認待ちは拒否", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))
		s.State = StatePendingConfirmation

		err := s.Hold("s2", baseTime, DefaultHoldTTL)

		assert.ErrorIs(t, err, ErrSeatHeldByAnother)
	})

	t.Run("自セッションの確認待ちは仮押さえに戻らない", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))
		s.State = StatePendingConfirmation
		s.BuyerName = "Jane Doe"

		err := s.Hold("s1", baseTime, DefaultHoldTTL)

		assert.ErrorIs(t, err, ErrSeatAwaitingConfirmation)
		assert.Equal(t, StatePendingConfirmation, s.State)
		assert.Equal(t, "Jane Doe", s.BuyerName)
	})

	t.Run("セッションIDが空なら拒否", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)

		err := s.Hold("", baseTime, DefaultHoldTTL)

		assert.ErrorIs(t, err, ErrSessionRequired)
	})
}

func TestSeat_Checkout(t *testing.T) {
	t.Run("自セッションの仮押さえを確認待ちにする", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(2*time.Minute))

		ok := s.Checkout("s1", "Jane Doe", baseTime, DefaultHoldTTL)

		assert.True(t, ok)
		assert.Equal(t, StatePendingConfirmation, s.State)
		assert.Equal(t, "Jane Doe", s.BuyerName)
		assert.Equal(t, baseTime.Add(10*time.Minute), *s.HoldUntil)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("より遅い期限はそのまま維持する", func(t *testing.T) {
		later := baseTime.Add(30 * time.Minute)
		s := heldSeat("s1", later)

		ok := s.Checkout("s1", "Jane Doe", baseTime, DefaultHoldTTL)

		assert.True(t, ok)
		assert.Equal(t, later, *s.HoldUntil)
	})

	t.Run("対象外の座席は変更しない", func(t *testing.T) {
		other := heldSeat("s2", baseTime.Add(time.Minute))
		unclaimed := heldSeat("", baseTime.Add(time.Minute))
		pending := heldSeat("s1", baseTime.Add(time.Minute))
		pending.State = StatePendingConfirmation
		free := NewSeat("A", 1, 2, 1500)

		for _, s := range []*Seat{other, unclaimed, pending, free} {
			before := *s
			assert.False(t, s.Checkout("s1", "Jane Doe", baseTime, DefaultHoldTTL))
			assert.Equal(t, before.State, s.State)
			assert.Equal(t, before.BuyerName, s.BuyerName)
		}
	})
}

func TestSeat_Confirm(t *testing.T) {
	tests := []struct {
		name string
		seat *Seat
	}{
		{"確認待ち", func() *Seat {
			s := heldSeat("s1", baseTime)
			s.State = StatePendingConfirmation
			return s
		}()},
		{"仮押さえ中（強制確定）", heldSeat("s1", baseTime)},
		{"空席（強制確定）", NewSeat("A", 1, 1, 1500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.seat.Confirm(baseTime)

			assert.Equal(t, StateOccupied, tt.seat.State)
			assert.Nil(t, tt.seat.HoldUntil)
			assert.Empty(t, tt.seat.HoldBy)
			assert.Equal(t, baseTime, tt.seat.LastUpdate)
			require.NoError(t, tt.seat.CheckLeaseInvariant())
		})
	}
}

func TestSeat_Release(t *testing.T) {
	t.Run("所有セッションは解放できる", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))

		changed, err := s.Release("s1", baseTime)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StateFree, s.State)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("確認待ちも所有セッションなら解放できる", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))
		s.State = StatePendingConfirmation
		s.BuyerName = "Jane Doe"

		changed, err := s.Release("s1", baseTime)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Empty(t, s.BuyerName)
	})

	t.Run("holdBy が空なら誰でも解放できる", func(t *testing.T) {
		s := heldSeat("", baseTime.Add(time.Minute))

		changed, err := s.Release("s9", baseTime)

		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("他セッションは解放できない", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(time.Minute))

		changed, err := s.Release("s2", baseTime)

		assert.ErrorIs(t, err, ErrSeatHeldByAnother)
		assert.False(t, changed)
		assert.Equal(t, StateHeld, s.State)
	})

	t.Run("期限切れなら他セッションでも解放できる", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(-time.Second))

		changed, err := s.Release("s2", baseTime)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StateFree, s.State)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("空席の解放は何もせず成功", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)

		changed, err := s.Release("s1", baseTime)

		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("占有済みは解放できない", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)
		s.State = StateOccupied

		_, err := s.Release("s1", baseTime)

		assert.ErrorIs(t, err, ErrSeatOccupied)
		assert.Equal(t, StateOccupied, s.State)
	})
}

func TestSeat_Expire(t *testing.T) {
	t.Run("期限切れの仮押さえは空席に戻る", func(t *testing.T) {
		s := heldSeat("s1", baseTime.Add(-time.Second))

		assert.True(t, s.Expire(baseTime))
		assert.Equal(t, StateFree, s.State)
		assert.Equal(t, baseTime, s.LastUpdate)
		require.NoError(t, s.CheckLeaseInvariant())
	})

	t.Run("期限ちょうどは回収しない", func(t *testing.T) {
		s := heldSeat("s1", baseTime)

		assert.False(t, s.Expire(baseTime))
		assert.Equal(t, StateHeld, s.State)
	})

	t.Run("期限のない仮押さえは回収しない", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)
		s.State = StateHeld
		s.HoldBy = "s1"

		assert.False(t, s.Expire(baseTime))
	})

	t.Run("占有済みは回収しない", func(t *testing.T) {
		s := NewSeat("A", 1, 1, 1500)
		s.State = StateOccupied

		assert.False(t, s.Expire(baseTime))
	})
}

func TestSeat_Validate(t *testing.T) {
	tests := []struct {
		name        string
		seat        *Seat
		expectedErr error
	}{
		{"有効な座席", NewSeat("A", 1, 1, 1500), nil},
		{"セクターが空", NewSeat("", 1, 1, 1500), ErrInvalidSector},
		{"列が0", NewSeat("A", 0, 1, 1500), ErrInvalidRow},
		{"番号が負", NewSeat("A", 1, -1, 1500), ErrInvalidNumber},
		{"価格が負", NewSeat("A", 1, 1, -1), ErrInvalidPrice},
		{"価格が0は有効", NewSeat("A", 1, 1, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seat.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.True(t, IsValidationError(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSeat_Clone(t *testing.T) {
	s := heldSeat("s1", baseTime)
	c := s.Clone()

	*c.HoldUntil = baseTime.Add(time.Hour)
	c.HoldBy = "s2"

	assert.Equal(t, baseTime, *s.HoldUntil)
	assert.Equal(t, "s1", s.HoldBy)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrSeatOccupied))
	assert.True(t, IsConflict(ErrSeatHeldByAnother))
	assert.True(t, IsConflict(ErrConcurrentModification))
	assert.False(t, IsConflict(ErrSeatNotFound))
	assert.False(t, IsConflict(ErrInvalidRow))
}
