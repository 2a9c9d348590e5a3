package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-seat-lease/internal/api"
	"github.com/sanosuguru/go-seat-lease/internal/api/handler"
	"github.com/sanosuguru/go-seat-lease/internal/api/middleware"
	"github.com/sanosuguru/go-seat-lease/internal/config"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/metrics"
)

// SeatService は利用者向けと管理者向けの両方の操作を持つサービス
type SeatService interface {
	handler.SeatServiceInterface
	handler.AdminServiceInterface
}

// Dependencies はルーター構築に必要な依存
type Dependencies struct {
	Service      SeatService
	AdminToken   string
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	MetricsAuth  config.MetricsConfig
	HealthChecks map[string]handler.HealthChecker
}

// New はルーティング済みのEchoインスタンスを作成する
func New(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	if deps.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(deps.Metrics, api.HTTPStatus))
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(deps.MetricsAuth))

	seatHandler := handler.NewSeatHandler(deps.Service)
	adminHandler := handler.NewAdminHandler(deps.Service)
	healthHandler := handler.NewHealthHandler(deps.HealthChecks)

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)

	v1.GET("/seats", seatHandler.List)
	v1.GET("/seats/availability", seatHandler.Availability)
	v1.POST("/seats/hold", seatHandler.Hold)
	v1.POST("/seats/release", seatHandler.Release)
	v1.POST("/checkout", seatHandler.Checkout)

	admin := v1.Group("/admin", middleware.AdminAuth(deps.AdminToken))
	admin.POST("/confirm", adminHandler.Confirm)
	admin.PUT("/inventory", adminHandler.ReplaceInventory)
	admin.POST("/bootstrap", adminHandler.Bootstrap)

	return e
}
