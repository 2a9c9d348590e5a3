package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

const seatColumns = `position, sector, row_no, seat_no, price, state, hold_until, hold_by, buyer_name, last_update, version`

type seatRow struct {
	Position   int        `db:"position"`
	Sector     string     `db:"sector"`
	RowNo      int        `db:"row_no"`
	SeatNo     int        `db:"seat_no"`
	Price      float64    `db:"price"`
	State      string     `db:"state"`
	HoldUntil  *time.Time `db:"hold_until"`
	HoldBy     *string    `db:"hold_by"`
	BuyerName  *string    `db:"buyer_name"`
	LastUpdate time.Time  `db:"last_update"`
	Version    int        `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	state, _ := seat.ParseState(r.State)
	s := &seat.Seat{
		Sector: r.Sector, Row: r.RowNo, Number: r.SeatNo,
		Price: r.Price, State: state, HoldUntil: r.HoldUntil,
		LastUpdate: r.LastUpdate, RowPosition: r.Position, Version: r.Version,
	}
	if r.HoldBy != nil {
		s.HoldBy = *r.HoldBy
	}
	if r.BuyerName != nil {
		s.BuyerName = *r.BuyerName
	}
	return s
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// SeatRepository は座席テーブルのPostgreSQL実装
type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

// ReadAll は物理位置の順に全座席を取得する
func (r *SeatRepository) ReadAll(ctx context.Context) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats ORDER BY position`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i, row := range rows {
		seats[i] = row.toEntity()
	}
	return seats, nil
}

// WriteOne は座席1行を更新する（楽観的ロック）
func (r *SeatRepository) WriteOne(ctx context.Context, s *seat.Seat) error {
	query := `
		UPDATE seats
		SET price = $1, state = $2, hold_until = $3, hold_by = $4, buyer_name = $5,
		    last_update = $6, version = version + 1
		WHERE position = $7 AND version = $8 AND sector = $9 AND row_no = $10 AND seat_no = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Price, string(s.State), s.HoldUntil, nullString(s.HoldBy), nullString(s.BuyerName),
		s.LastUpdate, s.RowPosition, s.Version, s.Sector, s.Row, s.Number,
	)
	if err != nil {
		return fmt.Errorf("座席更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return seat.ErrOptimisticLockConflict
	}
	s.Version++
	return nil
}

// ReplaceAll は座席テーブルを全件入れ替える
func (r *SeatRepository) ReplaceAll(ctx context.Context, seats []*seat.Seat) error {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seats`); err != nil {
			return fmt.Errorf("座席削除に失敗: %w", err)
		}

		// バッチサイズごとに分割してマルチバリューINSERTを実行
		const batchSize = 1000
		for i := 0; i < len(seats); i += batchSize {
			end := i + batchSize
			if end > len(seats) {
				end = len(seats)
			}
			if err := r.insertBatch(ctx, tx, seats[i:end], i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, s := range seats {
		s.RowPosition = i + 1
		s.Version = 1
	}
	return nil
}

// insertBatch はバッチ単位でマルチバリューINSERTを実行
func (r *SeatRepository) insertBatch(ctx context.Context, tx *sqlx.Tx, seats []*seat.Seat, offset int) error {
	if len(seats) == 0 {
		return nil
	}

	const cols = 11
	query := `INSERT INTO seats (` + seatColumns + `) VALUES `
	args := make([]interface{}, 0, len(seats)*cols)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		args = append(args,
			offset+i+1, s.Sector, s.Row, s.Number, s.Price, string(s.State),
			s.HoldUntil, nullString(s.HoldBy), nullString(s.BuyerName), s.LastUpdate, 1,
		)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", seat.ErrDuplicateSeat, pgErr.Detail)
		}
		return fmt.Errorf("座席一括作成に失敗: %w", err)
	}
	return nil
}

var _ seat.Repository = (*SeatRepository)(nil)
