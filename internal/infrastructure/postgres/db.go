package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sanosuguru/go-seat-lease/internal/config"
)

// ErrSeatsTableMissing は接続先に seats テーブルがない場合のエラー
var ErrSeatsTableMissing = errors.New("seats テーブルが存在しません")

// 接続プール設定
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// NewConnection は座席ストア用のPostgreSQL接続を作成する
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました (%s/%s): %w", cfg.Host, cfg.DBName, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// Ping は接続と seats テーブルの存在を確認する
func Ping(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("データベース接続に失敗しました: %w", err)
	}
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT to_regclass('public.seats') IS NOT NULL`); err != nil {
		return fmt.Errorf("seats テーブルの確認に失敗しました: %w", err)
	}
	if !exists {
		return ErrSeatsTableMissing
	}
	return nil
}
