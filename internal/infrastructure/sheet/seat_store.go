package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

var (
	ErrInvalidHeader = errors.New("シートのヘッダーに Sector/Row/Number 列がありません")
)

// SeatStore はスプレッドシート（xlsx）1枚を座席テーブルとして扱うストア。
// 1行目はヘッダー、データは2行目から始まり、行番号がそのまま RowPosition になる。
type SeatStore struct {
	mu        sync.Mutex
	path      string
	sheetName string
}

// NewSeatStore はストアを作成する。ファイルがなければヘッダーのみで作成する。
func NewSeatStore(path, sheetName string) (*SeatStore, error) {
	st := &SeatStore{path: path, sheetName: sheetName}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := st.writeAll(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("シートファイルの確認に失敗: %w", err)
	}
	return st, nil
}

// ReadAll は全座席をシート上の順序で取得する
func (st *SeatStore) ReadAll(ctx context.Context) ([]*seat.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	f, rows, l, err := st.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seats := make([]*seat.Seat, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		seats = append(seats, l.toSeat(rows[i], i+1))
	}
	return seats, nil
}

// WriteOne は RowPosition の行を書き換える。
// 行の自然キーと Version が読み込み時から変わっていれば ErrOptimisticLockConflict。
func (st *SeatStore) WriteOne(ctx context.Context, s *seat.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	f, rows, l, err := st.open()
	if err != nil {
		return err
	}
	defer f.Close()

	idx := s.RowPosition - 1
	if idx < 1 || idx >= len(rows) {
		return seat.ErrOptimisticLockConflict
	}
	current := l.toSeat(rows[idx], s.RowPosition)
	if current.Key() != s.Key() || current.Version != s.Version {
		return seat.ErrOptimisticLockConflict
	}

	// 旧フォーマットのシートにはない列を追加する
	for _, c := range []column{colState, colHoldUntil, colHoldBy, colLastUpdate, colBuyer, colVersion, colPrice} {
		if col, added := l.ensure(c); added {
			if err := setCell(f, st.sheetName, col, 1, canonicalHeader[c]); err != nil {
				return err
			}
		}
	}

	next := s.Clone()
	next.Version++
	for c, v := range l.values(next) {
		if err := setCell(f, st.sheetName, l.index[c], s.RowPosition, v); err != nil {
			return err
		}
	}
	if err := st.save(f); err != nil {
		return err
	}
	s.Version = next.Version
	return nil
}

// ReplaceAll はシートを作り直して全座席を書き込む
func (st *SeatStore) ReplaceAll(ctx context.Context, seats []*seat.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.writeAll(seats); err != nil {
		return err
	}
	for i, s := range seats {
		s.RowPosition = i + 2
		s.Version = 1
	}
	return nil
}

func (st *SeatStore) open() (*excelize.File, [][]string, *layout, error) {
	f, err := excelize.OpenFile(st.path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("シートファイルを開けません: %w", err)
	}
	rows, err := f.GetRows(st.sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("シートの読み込みに失敗: %w", err)
	}
	if len(rows) == 0 {
		f.Close()
		return nil, nil, nil, ErrInvalidHeader
	}
	l, err := parseHeader(rows[0])
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	return f, rows, l, nil
}

func (st *SeatStore) writeAll(seats []*seat.Seat) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), st.sheetName); err != nil {
		return fmt.Errorf("シート名の設定に失敗: %w", err)
	}
	header := make([]interface{}, len(canonicalHeader))
	for i, h := range canonicalHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(st.sheetName, "A1", &header); err != nil {
		return fmt.Errorf("ヘッダーの書き込みに失敗: %w", err)
	}

	l, _ := parseHeader(canonicalHeader)
	for i, s := range seats {
		c := s.Clone()
		c.Version = 1
		row := make([]interface{}, columnCount)
		for col, v := range l.values(c) {
			row[l.index[col]] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(st.sheetName, cell, &row); err != nil {
			return fmt.Errorf("座席 %s の書き込みに失敗: %w", s.Key(), err)
		}
	}
	return st.save(f)
}

// save は一時ファイルに書き出してから置き換える
func (st *SeatStore) save(f *excelize.File) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("ディレクトリ作成に失敗: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", st.path, time.Now().UnixNano())
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("シートの保存に失敗: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("シートの置き換えに失敗: %w", err)
	}
	return nil
}

func (l *layout) toSeat(row []string, position int) *seat.Seat {
	state, _ := seat.ParseState(l.cell(row, colState))
	return &seat.Seat{
		Sector:      l.cell(row, colSector),
		Row:         parseInt(l.cell(row, colRow)),
		Number:      parseInt(l.cell(row, colNumber)),
		Price:       parseFloat(l.cell(row, colPrice)),
		State:       state,
		HoldUntil:   parseTime(l.cell(row, colHoldUntil)),
		HoldBy:      l.cell(row, colHoldBy),
		BuyerName:   l.cell(row, colBuyer),
		LastUpdate:  derefTime(parseTime(l.cell(row, colLastUpdate))),
		RowPosition: position,
		Version:     parseInt(l.cell(row, colVersion)),
	}
}

// values は列ごとの書き込み値を返す
func (l *layout) values(s *seat.Seat) map[column]interface{} {
	return map[column]interface{}{
		colSector:     s.Sector,
		colRow:        s.Row,
		colNumber:     s.Number,
		colPrice:      s.Price,
		colState:      string(s.State),
		colHoldUntil:  formatTime(s.HoldUntil),
		colHoldBy:     s.HoldBy,
		colLastUpdate: formatTime(&s.LastUpdate),
		colBuyer:      s.BuyerName,
		colVersion:    s.Version,
	}
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("セル %s の書き込みに失敗: %w", cell, err)
	}
	return nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

var _ seat.Repository = (*SeatStore)(nil)
