package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

// LeaseSweeper は期限切れリースを回収するインターフェース
type LeaseSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpiredLeaseSweeper は一定間隔でスイープを実行するワーカー。
// 各操作の冒頭でもスイープされるため、これは空席表示を新しく保つための補助。
type ExpiredLeaseSweeper struct {
	seatService LeaseSweeper
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewExpiredLeaseSweeper は新しいスイーパーを作成
func NewExpiredLeaseSweeper(ss LeaseSweeper, interval time.Duration) *ExpiredLeaseSweeper {
	return &ExpiredLeaseSweeper{
		seatService: ss,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (w *ExpiredLeaseSweeper) Start(ctx context.Context) {
	logger.Info("期限切れリーススイーパー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れリーススイーパー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("期限切れリーススイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (w *ExpiredLeaseSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ExpiredLeaseSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	count, err := w.seatService.SweepExpired(ctx)
	if err != nil {
		log.Error("期限切れリースの回収失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れリースを回収", zap.Int("count", count))
	} else {
		log.Debug("期限切れリースなし")
	}
}
