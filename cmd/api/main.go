package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/api/handler"
	"github.com/sanosuguru/go-seat-lease/internal/api/router"
	"github.com/sanosuguru/go-seat-lease/internal/application"
	"github.com/sanosuguru/go-seat-lease/internal/config"
	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/feed"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/memory"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/messaging"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-seat-lease/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-lease/internal/infrastructure/sheet"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/metrics"
	"github.com/sanosuguru/go-seat-lease/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger.Init(cfg.Env)
	defer logger.Sync()

	m := metrics.Init()
	checks := map[string]handler.HealthChecker{}

	// 座席ストア
	repo, closeStore, err := openStore(cfg, checks)
	if err != nil {
		logger.Fatal("座席ストアの初期化に失敗", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	opts := []application.Option{
		application.WithMetrics(m),
		application.WithHoldTTL(cfg.Lease.HoldTTL),
		application.WithStoreTimeout(cfg.Store.Timeout),
		application.WithWriteRetries(cfg.Lease.WriteRetries),
	}

	// Redis（座席ロック・空席集計キャッシュ）
	if cfg.Redis.Enabled {
		client := redisinfra.NewClient(&cfg.Redis)
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisinfra.Ping(ctx, client)
		cancel()
		if err != nil {
			logger.Fatal("Redis接続に失敗", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, client) }
		opts = append(opts,
			application.WithLockManager(redisinfra.NewLockManager(client), cfg.Lease.LockTTL),
			application.WithCache(redisinfra.NewAvailabilityCache(client, 0)),
		)
		logger.Info("Redisを有効化", zap.String("addr", cfg.Redis.Addr()))
	}

	// 在庫CSVフィード
	if cfg.Feed.CSVURL != "" {
		opts = append(opts, application.WithFeed(feed.NewCSVClient(cfg.Feed.CSVURL, cfg.Feed.Timeout)))
	}

	// 確定イベント（RabbitMQ）
	if cfg.Messaging.AMQPURL != "" {
		publisher, err := messaging.NewPublisher(cfg.Messaging.AMQPURL, cfg.Messaging.Queue)
		if err != nil {
			logger.Fatal("RabbitMQ接続に失敗", zap.Error(err))
		}
		defer publisher.Close()
		opts = append(opts, application.WithPublisher(publisher))
		logger.Info("確定イベントの送信を有効化", zap.String("queue", cfg.Messaging.Queue))
	}

	service := application.NewSeatService(repo, opts...)

	if cfg.Admin.Token == "" {
		logger.Warn("ADMIN_TOKEN が未設定のため管理者APIは全て拒否されます")
	}

	e := router.New(router.Dependencies{
		Service:      service,
		AdminToken:   cfg.Admin.Token,
		Metrics:      m,
		MetricsAuth:  cfg.Metrics,
		HealthChecks: checks,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// バックグラウンドスイーパー（各操作の先頭でも回収される）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var sweeper *worker.ExpiredLeaseSweeper
	if cfg.Lease.SweepInterval > 0 {
		sweeper = worker.NewExpiredLeaseSweeper(service, cfg.Lease.SweepInterval)
		go sweeper.Start(ctx)
	}

	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}

// openStore は STORE_DRIVER に応じた座席ストアを作成する
func openStore(cfg *config.Config, checks map[string]handler.HealthChecker) (seat.Repository, func(), error) {
	switch cfg.Store.Driver {
	case "sheet":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SheetPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("シートのディレクトリ作成に失敗: %w", err)
		}
		store, err := sheet.NewSeatStore(cfg.Store.SheetPath, cfg.Store.SheetName)
		if err != nil {
			return nil, nil, err
		}
		checks["store"] = func(ctx context.Context) error {
			_, err := store.ReadAll(ctx)
			return err
		}
		return store, func() {}, nil

	case "postgres":
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, err
		}
		checks["store"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
		return postgres.NewSeatRepository(db), func() { db.Close() }, nil

	case "memory":
		logger.Warn("インメモリストアを使用します（再起動で座席は失われます）")
		return memory.NewSeatStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("未知のストアドライバー: %s", cfg.Store.Driver)
	}
}
