package handler

import (
	"context"

	"github.com/sanosuguru/go-seat-lease/internal/application"
	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	redisinfra "github.com/sanosuguru/go-seat-lease/internal/infrastructure/redis"
)

// SeatServiceInterface は利用者向け座席操作のインターフェース
type SeatServiceInterface interface {
	Status(ctx context.Context) ([]*seat.Seat, error)
	Availability(ctx context.Context) (redisinfra.Availability, error)
	Hold(ctx context.Context, input application.HoldInput) (*seat.Seat, error)
	Release(ctx context.Context, input application.ReleaseInput) (*seat.Seat, error)
	Checkout(ctx context.Context, input application.CheckoutInput) ([]*seat.Seat, error)
}

// AdminServiceInterface は管理者向け操作のインターフェース
type AdminServiceInterface interface {
	Confirm(ctx context.Context, key seat.Key) (*seat.Seat, error)
	ReplaceInventory(ctx context.Context, items []seat.InventoryItem) (int, error)
	ReplaceInventoryFromFeed(ctx context.Context) (int, error)
}

// HealthChecker は依存先の疎通確認を行う
type HealthChecker func(ctx context.Context) error
