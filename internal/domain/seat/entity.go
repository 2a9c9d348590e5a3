package seat

import (
	"strings"
	"time"
)

// State は座席の状態を表す
type State string

const (
	StateFree                State = "free"
	StateHeld                State = "held"
	StatePendingConfirmation State = "pending_confirmation"
	StateOccupied            State = "occupied"
)

// DefaultHoldTTL は仮押さえの有効期間
const DefaultHoldTTL = 10 * time.Minute

// 旧フォーマット（スプレッドシート運用時代）の状態ラベル
var legacyStateLabels = map[string]State{
	"libre":                     StateFree,
	"hold":                      StateHeld,
	"pendiente de confirmación": StatePendingConfirmation,
	"pendiente de confirmacion": StatePendingConfirmation,
	"pendiente":                 StatePendingConfirmation,
	"ocupado":                   StateOccupied,
}

// ParseState は文字列から状態を解釈する。
// 未知の値・空文字は Free として扱い、ok=false を返す。
func ParseState(v string) (State, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch State(s) {
	case StateFree, StateHeld, StatePendingConfirmation, StateOccupied:
		return State(s), true
	}
	if st, found := legacyStateLabels[s]; found {
		return st, true
	}
	return StateFree, false
}

// HasLease はリース（holdBy/holdUntil）を持ちうる状態かを返す
func (st State) HasLease() bool {
	return st == StateHeld || st == StatePendingConfirmation
}

// Seat は座席エンティティを表す
type Seat struct {
	Sector     string
	Row        int
	Number     int
	Price      float64
	State      State
	HoldUntil  *time.Time
	HoldBy     string
	BuyerName  string
	LastUpdate time.Time

	// RowPosition はストア上の物理位置（ストアアダプタ専用）
	RowPosition int
	// Version は楽観的ロック用
	Version int
}

// NewSeat は空席状態の座席を作成する
func NewSeat(sector string, row, number int, price float64) *Seat {
	return &Seat{
		Sector:     sector,
		Row:        row,
		Number:     number,
		Price:      price,
		State:      StateFree,
		LastUpdate: time.Now(),
	}
}

// Key は座席の自然キーを返す
func (s *Seat) Key() Key {
	return Key{Sector: s.Sector, Row: s.Row, Number: s.Number}
}

// Clone は座席のコピーを返す
func (s *Seat) Clone() *Seat {
	c := *s
	if s.HoldUntil != nil {
		t := *s.HoldUntil
		c.HoldUntil = &t
	}
	return &c
}

// IsUnclaimed は holdBy が空かを返す（データ不整合時は誰でも操作可能）
func (s *Seat) IsUnclaimed() bool {
	return s.HoldBy == ""
}

// IsExpired はリースが now 時点で期限切れかを返す
func (s *Seat) IsExpired(now time.Time) bool {
	return s.State.HasLease() && s.HoldUntil != nil && s.HoldUntil.Before(now)
}

// claimed は now 時点で有効な所有者がいるかを返す。期限切れのリースは所有者なしとみなす。
func (s *Seat) claimed(now time.Time) bool {
	return !s.IsUnclaimed() && !s.IsExpired(now)
}

// Hold は座席を仮押さえする
func (s *Seat) Hold(session string, now time.Time, ttl time.Duration) error {
	if session == "" {
		return ErrSessionRequired
	}
	switch s.State {
	case StateOccupied:
		return ErrSeatOccupied
	case StateHeld:
		if s.claimed(now) && s.HoldBy != session {
			return ErrSeatHeldByAnother
		}
	case StatePendingConfirmation:
		if s.claimed(now) {
			if s.HoldBy != session {
				return ErrSeatHeldByAnother
			}
			return ErrSeatAwaitingConfirmation
		}
		s.BuyerName = ""
	default:
		s.BuyerName = ""
	}
	until := now.Add(ttl)
	s.State = StateHeld
	s.HoldBy = session
	s.HoldUntil = &until
	s.LastUpdate = now
	return nil
}

// Checkout は自セッションの仮押さえを確認待ちに進める。
// 対象外の座席は変更せず false を返す。
func (s *Seat) Checkout(session, buyerName string, now time.Time, ttl time.Duration) bool {
	if s.State != StateHeld || session == "" || s.HoldBy != session {
		return false
	}
	until := now.Add(ttl)
	if s.HoldUntil != nil && s.HoldUntil.After(until) {
		until = *s.HoldUntil
	}
	s.State = StatePendingConfirmation
	s.BuyerName = buyerName
	s.HoldUntil = &until
	s.LastUpdate = now
	return true
}

// Confirm は座席を占有状態にする（管理者による強制確定も許可）
func (s *Seat) Confirm(now time.Time) {
	s.State = StateOccupied
	s.HoldBy = ""
	s.HoldUntil = nil
	s.LastUpdate = now
}

// Release は仮押さえを解放する。空席への解放は変更なしで成功する。
func (s *Seat) Release(session string, now time.Time) (bool, error) {
	switch s.State {
	case StateFree:
		return false, nil
	case StateOccupied:
		return false, ErrSeatOccupied
	}
	if s.claimed(now) && s.HoldBy != session {
		return false, ErrSeatHeldByAnother
	}
	s.free(now)
	return true, nil
}

// Expire は期限切れのリースを回収する
func (s *Seat) Expire(now time.Time) bool {
	if !s.IsExpired(now) {
		return false
	}
	s.free(now)
	return true
}

func (s *Seat) free(now time.Time) {
	s.State = StateFree
	s.HoldBy = ""
	s.HoldUntil = nil
	s.BuyerName = ""
	s.LastUpdate = now
}

// CheckLeaseInvariant は holdBy/holdUntil と状態の整合性を検証する
func (s *Seat) CheckLeaseInvariant() error {
	hasUntil := s.HoldUntil != nil
	hasBy := s.HoldBy != ""
	if hasUntil != hasBy || hasUntil != s.State.HasLease() {
		return ErrLeaseInvariant
	}
	return nil
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if err := s.Key().Validate(); err != nil {
		return err
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}
