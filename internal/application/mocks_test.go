package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/memory"
	redisinfra "github.com/sanosuguru/go-seat-lease/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockSeatRepository implements seat.Repository
type MockSeatRepository struct {
	mock.Mock
}

func (m *MockSeatRepository) ReadAll(ctx context.Context) ([]*seat.Seat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// 呼び出しごとに新しい座席を返す場合
	if fn, ok := args.Get(0).(func(context.Context) []*seat.Seat); ok {
		return fn(ctx), args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatRepository) WriteOne(ctx context.Context, s *seat.Seat) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSeatRepository) ReplaceAll(ctx context.Context, seats []*seat.Seat) error {
	args := m.Called(ctx, seats)
	return args.Error(0)
}

// MockPublisher implements ConfirmedPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishSeatConfirmed(ctx context.Context, ev seat.ConfirmedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockFeed implements InventoryFeed
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) Fetch(ctx context.Context) ([]seat.InventoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]seat.InventoryItem), args.Error(1)
}

// MockAvailabilityCache implements AvailabilityCache
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) Get(ctx context.Context) (redisinfra.Availability, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Availability), args.Error(1)
}

func (m *MockAvailabilityCache) Set(ctx context.Context, a redisinfra.Availability) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// blockingRepository はコンテキストが終わるまで応答しないストア
type blockingRepository struct{}

func (blockingRepository) ReadAll(ctx context.Context) ([]*seat.Seat, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingRepository) WriteOne(ctx context.Context, _ *seat.Seat) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingRepository) ReplaceAll(ctx context.Context, _ []*seat.Seat) error {
	<-ctx.Done()
	return ctx.Err()
}

// racingSweepStore は最初の回収書き込みの直前に、別のリクエストが同じ座席を先に回収した状態を作る
type racingSweepStore struct {
	*memory.SeatStore

	mu    sync.Mutex
	raced bool
}

func (r *racingSweepStore) WriteOne(ctx context.Context, s *seat.Seat) error {
	r.mu.Lock()
	race := !r.raced && s.State == seat.StateFree
	r.raced = r.raced || race
	r.mu.Unlock()

	if race {
		if err := r.SeatStore.WriteOne(ctx, s.Clone()); err != nil {
			return err
		}
	}
	return r.SeatStore.WriteOne(ctx, s)
}

// === Test helpers ===

var baseTime = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// defaultSeats は A-1-1, A-1-2, A-1-3, B-2-1 の4席
func defaultSeats() []*seat.Seat {
	return []*seat.Seat{
		seat.NewSeat("A", 1, 1, 1000),
		seat.NewSeat("A", 1, 2, 1000),
		seat.NewSeat("A", 1, 3, 1000),
		seat.NewSeat("B", 2, 1, 500),
	}
}

func setupService(t *testing.T, opts ...Option) (*SeatService, *memory.SeatStore, *fakeClock) {
	t.Helper()
	store := memory.NewSeatStore(defaultSeats()...)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewSeatService(store, opts...), store, clock
}

func findSeat(t *testing.T, store seat.Repository, k seat.Key) *seat.Seat {
	t.Helper()
	seats, err := store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	s, err := seat.NewLedger(seats).Find(k)
	if err != nil {
		t.Fatalf("Find %s: %v", k, err)
	}
	return s
}

func key(sector string, row, number int) seat.Key {
	return seat.Key{Sector: sector, Row: row, Number: number}
}
