package seat

import (
	"fmt"
	"strings"
)

// Key は (sector, row, number) の自然キー
type Key struct {
	Sector string
	Row    int
	Number int
}

// NewKey は前後の空白を除いたキーを作成する
func NewKey(sector string, row, number int) Key {
	return Key{Sector: strings.TrimSpace(sector), Row: row, Number: number}
}

// Validate はキーの検証を行う
func (k Key) Validate() error {
	if k.Sector == "" {
		return ErrInvalidSector
	}
	if k.Row <= 0 {
		return ErrInvalidRow
	}
	if k.Number <= 0 {
		return ErrInvalidNumber
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Sector, k.Row, k.Number)
}
