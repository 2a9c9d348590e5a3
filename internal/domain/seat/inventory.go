package seat

import (
	"fmt"
	"strings"
	"time"
)

// InventoryItem は一括ロードで投入する1座席分のデータ
type InventoryItem struct {
	Sector string
	Row    int
	Number int
	Price  float64
	State  string
}

// ConfirmedEvent は座席確定時に発行するイベント
type ConfirmedEvent struct {
	Sector      string    `json:"sector"`
	Row         int       `json:"row"`
	Number      int       `json:"number"`
	Price       float64   `json:"price"`
	BuyerName   string    `json:"buyer_name,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// NewConfirmedEvent は確定済み座席からイベントを作成する
func NewConfirmedEvent(s *Seat) ConfirmedEvent {
	return ConfirmedEvent{
		Sector:      s.Sector,
		Row:         s.Row,
		Number:      s.Number,
		Price:       s.Price,
		BuyerName:   s.BuyerName,
		ConfirmedAt: s.LastUpdate,
	}
}

// BuildInventory は投入データを検証し、リースなしの座席一覧に変換する。
// 仮押さえ・確認待ちの行は所有者を持てないため空席に戻し、その座席を reset で返す。
// それ以外の不正が1件でもあれば全体を拒否する。
func BuildInventory(items []InventoryItem, now time.Time) (seats []*Seat, reset []Key, err error) {
	seats = make([]*Seat, 0, len(items))
	seen := make(map[Key]struct{}, len(items))
	for i, it := range items {
		k := NewKey(it.Sector, it.Row, it.Number)
		if err := k.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%d件目: %w", i+1, err)
		}
		if it.Price < 0 {
			return nil, nil, fmt.Errorf("%d件目: %w", i+1, ErrInvalidPrice)
		}
		if _, dup := seen[k]; dup {
			return nil, nil, fmt.Errorf("%d件目 %s: %w", i+1, k, ErrDuplicateSeat)
		}
		seen[k] = struct{}{}

		state := StateFree
		if strings.TrimSpace(it.State) != "" {
			parsed, ok := ParseState(it.State)
			if !ok {
				return nil, nil, fmt.Errorf("%d件目 %q: %w", i+1, it.State, ErrInvalidInventoryState)
			}
			if parsed.HasLease() {
				reset = append(reset, k)
				parsed = StateFree
			}
			state = parsed
		}

		s := NewSeat(k.Sector, k.Row, k.Number, it.Price)
		s.State = state
		s.LastUpdate = now
		seats = append(seats, s)
	}
	return seats, reset, nil
}
