package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

const (
	availabilityKey        = "seats:availability"
	DefaultAvailabilityTTL = 30 * time.Second
)

// Availability はセクターごと・状態ごとの座席数
type Availability map[string]map[seat.State]int

// AvailabilityCache は空席集計のキャッシュを管理する
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache は新しいAvailabilityCacheを作成する。ttl が0以下なら30秒。
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

// Get はキャッシュ済みの集計を取得する
func (c *AvailabilityCache) Get(ctx context.Context) (Availability, error) {
	data, err := c.client.Get(ctx, availabilityKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var a Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("キャッシュのデコードに失敗: %w", err)
	}
	return a, nil
}

// Set は集計をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, a Availability) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は集計キャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, availabilityKey).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}
