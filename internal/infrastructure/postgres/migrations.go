package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

// ErrDirtySchema は前回のマイグレーションが途中で失敗している場合のエラー
var ErrDirtySchema = errors.New("seats スキーマが不完全な状態です")

// RunMigrations は seats テーブルのマイグレーションを適用する
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("マイグレーションの読み込みに失敗 (%s): %w", migrationsPath, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("seats スキーマのマイグレーションに失敗: %w", err)
	}

	version, err := schemaVersion(m.Version())
	if err != nil {
		return err
	}
	logger.Info("seats スキーマを適用しました", zap.Uint("version", version), zap.String("path", migrationsPath))
	return nil
}

// schemaVersion はマイグレーション後のバージョン情報を検証する
func schemaVersion(version uint, dirty bool, err error) (uint, error) {
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, fmt.Errorf("seats スキーマのマイグレーションが1件も適用されていません: %w", err)
	case err != nil:
		return 0, fmt.Errorf("スキーマバージョンの取得に失敗: %w", err)
	case dirty:
		return version, fmt.Errorf("%w (version=%d)", ErrDirtySchema, version)
	}
	return version, nil
}
