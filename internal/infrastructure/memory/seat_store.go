package memory

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

// SeatStore はプロセス内で座席テーブルを保持するストア。
// 開発・テスト用で、行位置はスプレッドシートと同じく2から始まる。
type SeatStore struct {
	mu    sync.Mutex
	seats []*seat.Seat
}

// NewSeatStore は初期在庫を持つストアを作成する
func NewSeatStore(initial ...*seat.Seat) *SeatStore {
	st := &SeatStore{}
	st.load(initial)
	return st
}

func (st *SeatStore) load(seats []*seat.Seat) {
	st.seats = make([]*seat.Seat, len(seats))
	for i, s := range seats {
		c := s.Clone()
		c.RowPosition = i + 2
		c.Version = 1
		st.seats[i] = c
	}
}

// ReadAll は全座席のコピーを返す
func (st *SeatStore) ReadAll(ctx context.Context) ([]*seat.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]*seat.Seat, len(st.seats))
	for i, s := range st.seats {
		out[i] = s.Clone()
	}
	return out, nil
}

// WriteOne は行位置・自然キー・バージョンが一致する場合のみ書き換える
func (st *SeatStore) WriteOne(ctx context.Context, s *seat.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	i := s.RowPosition - 2
	if i < 0 || i >= len(st.seats) {
		return seat.ErrOptimisticLockConflict
	}
	cur := st.seats[i]
	if cur.Key() != s.Key() || cur.Version != s.Version {
		return seat.ErrOptimisticLockConflict
	}

	s.Version++
	st.seats[i] = s.Clone()
	return nil
}

// ReplaceAll は座席テーブルを全件入れ替える
func (st *SeatStore) ReplaceAll(ctx context.Context, seats []*seat.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	st.load(seats)
	for i, s := range seats {
		s.RowPosition = i + 2
		s.Version = 1
	}
	return nil
}

var _ seat.Repository = (*SeatStore)(nil)
