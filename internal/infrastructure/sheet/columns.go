package sheet

import (
	"strconv"
	"strings"
	"time"
)

type column int

const (
	colSector column = iota
	colRow
	colNumber
	colPrice
	colState
	colHoldUntil
	colHoldBy
	colLastUpdate
	colBuyer
	colVersion
	columnCount
)

// 新規作成するシートのヘッダー
var canonicalHeader = []string{
	"Sector", "Row", "Number", "Price", "State", "HoldUntil", "HoldBy", "LastUpdate", "Buyer", "Version",
}

// 旧フォーマットの見出しも受け付ける
var headerAliases = map[string]column{
	"sector":      colSector,
	"row":         colRow,
	"fila":        colRow,
	"number":      colNumber,
	"seat":        colNumber,
	"asiento":     colNumber,
	"price":       colPrice,
	"precio":      colPrice,
	"state":       colState,
	"estado":      colState,
	"holduntil":   colHoldUntil,
	"hold_until":  colHoldUntil,
	"holdby":      colHoldBy,
	"hold_by":     colHoldBy,
	"lastupdate":  colLastUpdate,
	"last_update": colLastUpdate,
	"buyer":       colBuyer,
	"buyer_name":  colBuyer,
	"alumno/a":    colBuyer,
	"alumno":      colBuyer,
	"version":     colVersion,
}

// layout は論理列からシート上の列番号（0始まり）への対応
type layout struct {
	index [columnCount]int
	width int
}

func parseHeader(header []string) (*layout, error) {
	l := &layout{width: len(header)}
	for i := range l.index {
		l.index[i] = -1
	}
	for i, h := range header {
		c, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if ok && l.index[c] < 0 {
			l.index[c] = i
		}
	}
	for _, required := range []column{colSector, colRow, colNumber} {
		if l.index[required] < 0 {
			return nil, ErrInvalidHeader
		}
	}
	return l, nil
}

func (l *layout) cell(row []string, c column) string {
	i := l.index[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ensure は欠けている列をヘッダー末尾に追加し、追加した見出しを返す
func (l *layout) ensure(c column) (int, bool) {
	if l.index[c] >= 0 {
		return l.index[c], false
	}
	l.index[c] = l.width
	l.width++
	return l.index[c], true
}

func parseInt(v string) int {
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	for _, lay := range timeLayouts {
		if t, err := time.Parse(lay, v); err == nil {
			return &t
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
