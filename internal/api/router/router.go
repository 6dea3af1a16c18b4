// Package router は HTTP ルーティングを組み立てる
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kai-5908/reservation-system-tutorial/internal/api"
	"github.com/kai-5908/reservation-system-tutorial/internal/api/handler"
	"github.com/kai-5908/reservation-system-tutorial/internal/api/middleware"
	"github.com/kai-5908/reservation-system-tutorial/internal/config"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
)

// Handlers はルーティングするハンドラーの組
type Handlers struct {
	Health      *handler.HealthHandler
	Slot        *handler.SlotHandler
	Reservation *handler.ReservationHandler
}

// Options はルーターの設定
// Metrics が nil の場合は HTTP メトリクスを収集せず /metrics も公開しない
type Options struct {
	Auth     config.AuthConfig
	Basic    config.MetricsConfig
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// New は共通ミドルウェアと全ルートを設定した Echo を返す
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	if opts.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(opts.Metrics))
	}

	e.GET("/health", h.Health.Check)
	if opts.Metrics != nil {
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(opts.Basic))
	}

	authed := e.Group("", middleware.JWTAuth(opts.Auth))

	authed.GET("/shops/:shop_id/slots/availability", h.Slot.Availability)
	authed.POST("/shops/:shop_id/slots", h.Slot.Create)

	authed.POST("/reservations", h.Reservation.Create)
	authed.GET("/me/reservations", h.Reservation.List)
	authed.GET("/me/reservations/:reservation_id", h.Reservation.Get)
	authed.POST("/me/reservations/:reservation_id/cancel", h.Reservation.Cancel)
	authed.POST("/me/reservations/:reservation_id/reschedule", h.Reservation.Reschedule)

	return e
}
