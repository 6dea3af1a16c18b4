package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kai-5908/reservation-system-tutorial/internal/api/handler"
	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/config"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
)

const testSecret = "router-secret"

type stubSlotService struct{}

func (stubSlotService) CreateSlot(ctx context.Context, input application.CreateSlotInput) (*slot.Slot, error) {
	return &slot.Slot{ID: 1, ShopID: input.ShopID, StartsAt: input.StartsAt, EndsAt: input.EndsAt, Capacity: input.Capacity, Status: slot.StatusOpen}, nil
}

func (stubSlotService) ListAvailability(ctx context.Context, input application.ListAvailabilityInput) ([]slot.Availability, error) {
	return []slot.Availability{}, nil
}

type stubReservationService struct {
	listedFor int64
}

func (s *stubReservationService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Detail, error) {
	return nil, slot.ErrSlotNotFound
}

func (s *stubReservationService) CancelReservation(ctx context.Context, input application.CancelReservationInput) (*reservation.Detail, error) {
	return nil, reservation.ErrReservationNotFound
}

func (s *stubReservationService) RescheduleReservation(ctx context.Context, input application.RescheduleReservationInput) (*application.RescheduleResult, error) {
	return nil, reservation.ErrReservationNotFound
}

func (s *stubReservationService) ListUserReservations(ctx context.Context, userID int64, status *reservation.Status) ([]reservation.Detail, error) {
	s.listedFor = userID
	return []reservation.Detail{}, nil
}

func (s *stubReservationService) GetUserReservation(ctx context.Context, reservationID, userID int64) (*reservation.Detail, error) {
	return nil, reservation.ErrReservationNotFound
}

func newTestRouter(t *testing.T, basic config.MetricsConfig) (http.Handler, *stubReservationService) {
	t.Helper()
	reg := prometheus.NewRegistry()
	rs := &stubReservationService{}
	e := New(Handlers{
		Health:      handler.NewHealthHandler(),
		Slot:        handler.NewSlotHandler(stubSlotService{}),
		Reservation: handler.NewReservationHandler(rs),
	}, Options{
		Auth:     config.AuthConfig{Secret: testSecret, Algorithm: "HS256"},
		Basic:    basic,
		Metrics:  metrics.NewWithRegistry(reg),
		Gatherer: reg,
	})
	return e, rs
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(h http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter(t *testing.T) {
	t.Run("ヘルスチェックは認証不要", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{})

		rec := serve(h, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("予約系のルートはトークンが必要", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{})

		rec := serve(h, http.MethodGet, "/me/reservations", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Contains(t, rec.Body.String(), `"code":401`)
	})

	t.Run("トークンの利用者IDでハンドラーが呼ばれる", func(t *testing.T) {
		h, rs := newTestRouter(t, config.MetricsConfig{})

		rec := serve(h, http.MethodGet, "/me/reservations", bearer(t, 42))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), rs.listedFor)
	})

	t.Run("ドメインエラーはJSONで返る", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{})

		rec := serve(h, http.MethodGet, "/me/reservations/7", bearer(t, 42))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":404`)
	})

	t.Run("未定義のルートは404", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{})

		rec := serve(h, http.MethodGet, "/unknown", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("メトリクスを公開する", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{})
		serve(h, http.MethodGet, "/health", "")

		rec := serve(h, http.MethodGet, "/metrics", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})

	t.Run("メトリクスの Basic 認証", func(t *testing.T) {
		h, _ := newTestRouter(t, config.MetricsConfig{User: "prom", Password: "secret"})

		rec := serve(h, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("prom", "secret")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
