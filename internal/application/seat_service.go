package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-seat-lease/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/metrics"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultWriteRetries = 3

	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

var (
	ErrFeedNotConfigured = errors.New("在庫フィードが設定されていません")
	ErrSeatBusy          = errors.New("座席が他のリクエストによって処理中です")
)

// ConfirmedPublisher は座席確定イベントの送信先
type ConfirmedPublisher interface {
	PublishSeatConfirmed(ctx context.Context, ev seat.ConfirmedEvent) error
}

// InventoryFeed は一括ロード用の在庫データ取得元
type InventoryFeed interface {
	Fetch(ctx context.Context) ([]seat.InventoryItem, error)
}

// AvailabilityCache は空席集計のキャッシュ
type AvailabilityCache interface {
	Get(ctx context.Context) (redisinfra.Availability, error)
	Set(ctx context.Context, a redisinfra.Availability) error
	Invalidate(ctx context.Context) error
}

// SeatService は座席リースの状態遷移を扱うアプリケーションサービス。
// 呼び出しごとにストアを全件読み込み、スイープしてから対象の行だけを書き戻す。
type SeatService struct {
	repo         seat.Repository
	lockManager  *redisinfra.LockManager
	lockTTL      time.Duration
	cache        AvailabilityCache
	publisher    ConfirmedPublisher
	feed         InventoryFeed
	metrics      *metrics.Metrics
	holdTTL      time.Duration
	storeTimeout time.Duration
	writeRetries int
	now          func() time.Time
}

// Option は SeatService の設定を変更する
type Option func(*SeatService)

// WithLockManager は座席単位の分散ロックを有効にする
func WithLockManager(lm *redisinfra.LockManager, ttl time.Duration) Option {
	return func(s *SeatService) {
		s.lockManager = lm
		s.lockTTL = ttl
	}
}

func WithCache(c AvailabilityCache) Option {
	return func(s *SeatService) { s.cache = c }
}

func WithPublisher(p ConfirmedPublisher) Option {
	return func(s *SeatService) { s.publisher = p }
}

func WithFeed(f InventoryFeed) Option {
	return func(s *SeatService) { s.feed = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SeatService) { s.metrics = m }
}

func WithHoldTTL(d time.Duration) Option {
	return func(s *SeatService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithStoreTimeout は1操作あたりのストア呼び出しの制限時間を設定する
func WithStoreTimeout(d time.Duration) Option {
	return func(s *SeatService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithWriteRetries は楽観的ロック競合時の再試行回数を設定する
func WithWriteRetries(n int) Option {
	return func(s *SeatService) {
		if n >= 0 {
			s.writeRetries = n
		}
	}
}

// WithClock はテスト用に現在時刻の取得元を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *SeatService) { s.now = now }
}

func NewSeatService(repo seat.Repository, opts ...Option) *SeatService {
	s := &SeatService{
		repo:         repo,
		lockTTL:      5 * time.Second,
		holdTTL:      seat.DefaultHoldTTL,
		storeTimeout: defaultStoreTimeout,
		writeRetries: defaultWriteRetries,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type HoldInput struct {
	Sector    string
	Row       int
	Number    int
	SessionID string
}

// Hold は座席を仮押さえする
func (s *SeatService) Hold(ctx context.Context, input HoldInput) (result *seat.Seat, err error) {
	defer func() { s.record("hold", err) }()

	key := seat.NewKey(input.Sector, input.Row, input.Number)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	session := strings.TrimSpace(input.SessionID)
	if session == "" {
		return nil, seat.ErrSessionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.lockSeat(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, _, err = s.update(ctx, nil, true, func(l *seat.Ledger, now time.Time) (*seat.Seat, bool, error) {
		cur, err := l.Find(key)
		if err != nil {
			return nil, false, err
		}
		next := cur.Clone()
		if err := next.Hold(session, now, s.holdTTL); err != nil {
			return nil, false, err
		}
		return next, true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.ForOperation("hold", zap.String("seat", key.String()), zap.String("session_id", session)).
		Info("座席を仮押さえしました", zap.Timep("hold_until", result.HoldUntil))
	return result, nil
}

type CheckoutInput struct {
	SessionID string
	BuyerName string
}

// Checkout はセッションが仮押さえ中の全座席を確認待ちに進め、進めた座席を返す。
// 他の状態の座席はエラーにせずそのまま残す。
func (s *SeatService) Checkout(ctx context.Context, input CheckoutInput) (converted []*seat.Seat, err error) {
	defer func() { s.record("checkout", err) }()

	session := strings.TrimSpace(input.SessionID)
	if session == "" {
		return nil, seat.ErrSessionRequired
	}
	buyer := strings.TrimSpace(input.BuyerName)
	if buyer == "" {
		return nil, seat.ErrBuyerNameRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ledger, _, err := s.load(ctx, true)
	if err != nil {
		return nil, err
	}

	converted = make([]*seat.Seat, 0)
	for _, held := range ledger.HeldBy(session) {
		key := held.Key()
		next, changed, err := s.update(ctx, ledger, true, func(l *seat.Ledger, now time.Time) (*seat.Seat, bool, error) {
			cur, err := l.Find(key)
			if err != nil {
				// 再読み込みの間に在庫が入れ替わった
				return nil, false, nil
			}
			next := cur.Clone()
			return next, next.Checkout(session, buyer, now, s.holdTTL), nil
		})
		if err != nil {
			return nil, err
		}
		if changed {
			converted = append(converted, next)
		}
	}

	logger.ForOperation("checkout", zap.String("session_id", session)).
		Info("チェックアウトしました", zap.Int("count", len(converted)))
	return converted, nil
}

// Confirm は座席を占有状態にする（管理者操作）。
// 直前の状態や仮押さえの所有者は問わない。
func (s *SeatService) Confirm(ctx context.Context, key seat.Key) (result *seat.Seat, err error) {
	defer func() { s.record("confirm", err) }()

	key = seat.NewKey(key.Sector, key.Row, key.Number)
	if err := key.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.lockSeat(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, _, err = s.update(ctx, nil, false, func(l *seat.Ledger, now time.Time) (*seat.Seat, bool, error) {
		cur, err := l.Find(key)
		if err != nil {
			return nil, false, err
		}
		next := cur.Clone()
		next.Confirm(now)
		return next, true, nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForOperation("confirm", zap.String("seat", key.String()))
	log.Info("座席を確定しました", zap.String("buyer_name", result.BuyerName))

	if s.publisher != nil {
		if pubErr := s.publisher.PublishSeatConfirmed(ctx, seat.NewConfirmedEvent(result)); pubErr != nil {
			log.Warn("確定イベントの送信に失敗", zap.Error(pubErr))
		}
	}
	return result, nil
}

type ReleaseInput struct {
	Sector    string
	Row       int
	Number    int
	SessionID string
}

// Release は仮押さえを解放する。空席の解放は何もせず成功する。
func (s *SeatService) Release(ctx context.Context, input ReleaseInput) (result *seat.Seat, err error) {
	defer func() { s.record("release", err) }()

	key := seat.NewKey(input.Sector, input.Row, input.Number)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	session := strings.TrimSpace(input.SessionID)
	if session == "" {
		return nil, seat.ErrSessionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.lockSeat(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, changed, err := s.update(ctx, nil, true, func(l *seat.Ledger, now time.Time) (*seat.Seat, bool, error) {
		cur, err := l.Find(key)
		if err != nil {
			return nil, false, err
		}
		next := cur.Clone()
		changed, err := next.Release(session, now)
		if err != nil {
			return nil, false, err
		}
		return next, changed, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.ForOperation("release", zap.String("seat", key.String()), zap.String("session_id", session)).
			Info("仮押さえを解放しました")
	}
	return result, nil
}

// Status はスイープ後の全座席を返す
func (s *SeatService) Status(ctx context.Context) (seats []*seat.Seat, err error) {
	defer func() { s.record("status", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ledger, _, err := s.load(ctx, true)
	if err != nil {
		return nil, err
	}
	seats = ledger.Seats()

	if s.metrics != nil {
		counts := map[seat.State]int{}
		for _, se := range seats {
			counts[se.State]++
		}
		for _, st := range []seat.State{seat.StateFree, seat.StateHeld, seat.StatePendingConfirmation, seat.StateOccupied} {
			s.metrics.SeatsByState.WithLabelValues(string(st)).Set(float64(counts[st]))
		}
	}
	return seats, nil
}

// Availability はセクター別・状態別の座席数を返す。
// キャッシュがあれば優先し、なければ Status から集計する。
func (s *SeatService) Availability(ctx context.Context) (redisinfra.Availability, error) {
	if s.cache != nil {
		a, err := s.cache.Get(ctx)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.Int("sectors", len(a)))
			return a, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	seats, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	a := redisinfra.Availability(seat.CountByState(seats))

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, a); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return a, nil
}

// ReplaceInventory は座席テーブル全体を入れ替える（管理者操作）。
// 1件でも不正な項目があれば何も書き込まない。
func (s *SeatService) ReplaceInventory(ctx context.Context, items []seat.InventoryItem) (count int, err error) {
	defer func() { s.record("replace", err) }()

	seats, reset, err := seat.BuildInventory(items, s.now())
	if err != nil {
		return 0, err
	}
	if len(reset) > 0 {
		keys := make([]string, len(reset))
		for i, k := range reset {
			keys[i] = k.String()
		}
		logger.ForOperation("replace_inventory").Warn("リース状態の行を空席として投入します",
			zap.Int("count", len(reset)), zap.Strings("seats", keys))
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	start := time.Now()
	if err := s.repo.ReplaceAll(ctx, seats); err != nil {
		s.observeStore("replace_all", "failed", start)
		if seat.IsValidationError(err) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: 在庫の書き込みに失敗: %w", seat.ErrStoreUnavailable, err)
	}
	s.observeStore("replace_all", "success", start)
	s.invalidateCache(ctx)

	logger.ForOperation("replace_inventory").Info("在庫を入れ替えました", zap.Int("count", len(seats)))
	return len(seats), nil
}

// ReplaceInventoryFromFeed はフィードから取得した在庫で座席テーブルを入れ替える
func (s *SeatService) ReplaceInventoryFromFeed(ctx context.Context) (int, error) {
	if s.feed == nil {
		return 0, ErrFeedNotConfigured
	}
	items, err := s.feed.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: 在庫フィードの取得に失敗: %w", seat.ErrStoreUnavailable, err)
	}
	return s.ReplaceInventory(ctx, items)
}

// SweepExpired は期限切れリースを回収し、回収した件数を返す
func (s *SeatService) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	_, swept, err := s.load(ctx, true)
	return swept, err
}

type transition func(l *seat.Ledger, now time.Time) (next *seat.Seat, changed bool, err error)

// update は読み込み・遷移・1行書き込みを行う。
// 書き込みが楽観的ロックで競合した場合は読み直して再試行する。
func (s *SeatService) update(ctx context.Context, ledger *seat.Ledger, sweep bool, fn transition) (*seat.Seat, bool, error) {
	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		if ledger == nil {
			var err error
			if ledger, _, err = s.load(ctx, sweep); err != nil {
				return nil, false, err
			}
		}

		next, changed, err := fn(ledger, s.now())
		if err != nil || !changed {
			return next, false, err
		}

		err = s.writeOne(ctx, next)
		if err == nil {
			ledger.Apply(next)
			s.invalidateCache(ctx)
			return next, true, nil
		}
		if !errors.Is(err, seat.ErrOptimisticLockConflict) {
			return nil, false, err
		}
		logger.Debug("書き込み競合のため再試行", zap.String("seat", next.Key().String()), zap.Int("attempt", attempt+1))
		ledger = nil
	}
	return nil, false, seat.ErrConcurrentModification
}

// load は全件読み込んで台帳を作る。sweep が true なら期限切れリースを先に回収する。
// 回収の書き込みが競合した場合は他のリクエストが先に更新しているので、読み直して台帳を作り直す。
func (s *SeatService) load(ctx context.Context, sweep bool) (*seat.Ledger, int, error) {
	swept := 0
	defer func() {
		if swept == 0 {
			return
		}
		s.invalidateCache(ctx)
		if s.metrics != nil {
			s.metrics.LeasesSweptTotal.Add(float64(swept))
		}
		logger.ForOperation("sweep").Info("期限切れリースを回収しました", zap.Int("count", swept))
	}()

	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		seats, err := s.readAll(ctx)
		if err != nil {
			return nil, swept, err
		}
		ledger := seat.NewLedger(seats)
		if !sweep {
			return ledger, 0, nil
		}

		n, conflicted, err := s.writeBackExpired(ctx, ledger)
		swept += n
		if err != nil {
			return nil, swept, err
		}
		if !conflicted {
			return ledger, swept, nil
		}
		logger.Debug("スイープの書き込み競合のため読み直し", zap.Int("attempt", attempt+1))
	}
	return nil, swept, seat.ErrConcurrentModification
}

// writeBackExpired は台帳の期限切れリースを1行ずつ書き戻す。
// 競合した行があれば conflicted=true を返し、その行は台帳に反映しない。
func (s *SeatService) writeBackExpired(ctx context.Context, ledger *seat.Ledger) (swept int, conflicted bool, err error) {
	for _, expired := range seat.Sweep(ledger.Seats(), s.now()) {
		err := s.writeOne(ctx, expired)
		if errors.Is(err, seat.ErrOptimisticLockConflict) {
			conflicted = true
			continue
		}
		if err != nil {
			return swept, conflicted, err
		}
		ledger.Apply(expired)
		swept++
	}
	return swept, conflicted, nil
}

func (s *SeatService) readAll(ctx context.Context) ([]*seat.Seat, error) {
	start := time.Now()
	seats, err := s.repo.ReadAll(ctx)
	if err != nil {
		s.observeStore("read_all", "failed", start)
		return nil, fmt.Errorf("%w: 座席の読み込みに失敗: %w", seat.ErrStoreUnavailable, err)
	}
	s.observeStore("read_all", "success", start)
	return seats, nil
}

func (s *SeatService) writeOne(ctx context.Context, se *seat.Seat) error {
	if err := se.CheckLeaseInvariant(); err != nil {
		return fmt.Errorf("%s: %w", se.Key(), err)
	}
	start := time.Now()
	err := s.repo.WriteOne(ctx, se)
	switch {
	case err == nil:
		s.observeStore("write_one", "success", start)
		return nil
	case errors.Is(err, seat.ErrOptimisticLockConflict):
		s.observeStore("write_one", "conflict", start)
		return err
	default:
		s.observeStore("write_one", "failed", start)
		return fmt.Errorf("%w: 座席 %s の書き込みに失敗: %w", seat.ErrStoreUnavailable, se.Key(), err)
	}
}

// lockSeat は分散ロックが有効なら座席単位のロックを取得し、解放関数を返す
func (s *SeatService) lockSeat(ctx context.Context, key seat.Key) (func(), error) {
	if s.lockManager == nil {
		return func() {}, nil
	}

	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, redisinfra.SeatLockKey(key), s.lockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		s.observeLock("acquire", "failed", start)
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: %s", ErrSeatBusy, key)
		}
		return nil, fmt.Errorf("%w: ロック取得に失敗: %w", seat.ErrStoreUnavailable, err)
	}
	s.observeLock("acquire", "success", start)

	return func() {
		// 呼び出し元のコンテキストが期限切れでも解放できるようにする
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		start := time.Now()
		if err := lock.Release(releaseCtx); err != nil {
			s.observeLock("release", "failed", start)
			logger.Warn("ロック解放に失敗", zap.String("key", lock.Key()), zap.Error(err))
			return
		}
		s.observeLock("release", "success", start)
	}, nil
}

func (s *SeatService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.Error(err))
	}
}

func (s *SeatService) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.SeatOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func (s *SeatService) observeStore(op, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func (s *SeatService) observeLock(op, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.DistributedLockDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case seat.IsValidationError(err):
		return "validation"
	case errors.Is(err, seat.ErrSeatNotFound):
		return "not_found"
	case seat.IsConflict(err), errors.Is(err, ErrSeatBusy):
		return "conflict"
	default:
		return "store_error"
	}
}
