package seat

import "time"

// Ledger は1リクエストの間だけ保持する座席一覧のメモリ表現
type Ledger struct {
	seats []*Seat
	index map[Key]int
}

// NewLedger はストアから読み込んだ順序を保ったまま台帳を作成する。
// 自然キーが重複する行は先頭の行を優先する。
func NewLedger(seats []*Seat) *Ledger {
	l := &Ledger{
		seats: make([]*Seat, len(seats)),
		index: make(map[Key]int, len(seats)),
	}
	for i, s := range seats {
		l.seats[i] = s
		if _, dup := l.index[s.Key()]; !dup {
			l.index[s.Key()] = i
		}
	}
	return l
}

// Find は自然キーで座席を検索する
func (l *Ledger) Find(k Key) (*Seat, error) {
	i, ok := l.index[k]
	if !ok {
		return nil, ErrSeatNotFound
	}
	return l.seats[i], nil
}

// Seats は台帳の全座席を返す
func (l *Ledger) Seats() []*Seat {
	out := make([]*Seat, len(l.seats))
	copy(out, l.seats)
	return out
}

// Len は座席数を返す
func (l *Ledger) Len() int {
	return len(l.seats)
}

// HeldBy は指定セッションが仮押さえ中の座席を返す
func (l *Ledger) HeldBy(session string) []*Seat {
	var out []*Seat
	for _, s := range l.seats {
		if s.State == StateHeld && session != "" && s.HoldBy == session {
			out = append(out, s)
		}
	}
	return out
}

// Apply は書き込みに成功した座席で台帳を更新する。
// 同じ物理位置の行を置き換える。
func (l *Ledger) Apply(updated *Seat) {
	for i, s := range l.seats {
		if s.RowPosition == updated.RowPosition && s.Key() == updated.Key() {
			l.seats[i] = updated
			return
		}
	}
}

// Sweep は期限切れリースを Free に戻した座席のコピーを返す。
// 入力は変更しない。
func Sweep(seats []*Seat, now time.Time) []*Seat {
	var expired []*Seat
	for _, s := range seats {
		if !s.IsExpired(now) {
			continue
		}
		c := s.Clone()
		c.Expire(now)
		expired = append(expired, c)
	}
	return expired
}

// CountByState はセクターごとの状態別座席数を集計する
func CountByState(seats []*Seat) map[string]map[State]int {
	out := make(map[string]map[State]int)
	for _, s := range seats {
		m, ok := out[s.Sector]
		if !ok {
			m = make(map[State]int)
			out[s.Sector] = m
		}
		m[s.State]++
	}
	return out
}
