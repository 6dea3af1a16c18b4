package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// MockSlotService はSlotServiceInterfaceのモック
type MockSlotService struct {
	mock.Mock
}

func (m *MockSlotService) CreateSlot(ctx context.Context, input application.CreateSlotInput) (*slot.Slot, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

func (m *MockSlotService) ListAvailability(ctx context.Context, input application.ListAvailabilityInput) ([]slot.Availability, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slot.Availability), args.Error(1)
}

func newSlotContext(e *echo.Echo, method, target, body, shopID string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("shop_id")
	c.SetParamValues(shopID)
	return c, rec
}

func TestSlotHandler_Create(t *testing.T) {
	e := NewTestEcho()
	startsAt := time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC)
	endsAt := startsAt.Add(time.Hour)

	t.Run("JSTの日時で枠を作成できる", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("CreateSlot", mock.Anything, application.CreateSlotInput{
			ShopID: 5, StartsAt: startsAt, EndsAt: endsAt, Capacity: 4,
		}).Return(&slot.Slot{
			ID: 10, ShopID: 5, StartsAt: startsAt, EndsAt: endsAt, Capacity: 4, Status: slot.StatusOpen,
		}, nil)

		handler := NewSlotHandler(mockService)
		body := `{"starts_at":"2030-06-10T18:00:00+09:00","ends_at":"2030-06-10T19:00:00+09:00","capacity":4}`
		c, rec := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp SlotResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(10), resp.SlotID)
		assert.Equal(t, "open", resp.Status)
		assert.Contains(t, rec.Body.String(), `"starts_at":"2030-06-10T18:00:00+09:00"`)
		mockService.AssertExpectations(t)
	})

	t.Run("席と状態を指定できる", func(t *testing.T) {
		seatID := int64(3)
		mockService := new(MockSlotService)
		mockService.On("CreateSlot", mock.Anything, application.CreateSlotInput{
			ShopID: 5, SeatID: &seatID, StartsAt: startsAt, EndsAt: endsAt, Capacity: 2, Status: slot.StatusBlocked,
		}).Return(&slot.Slot{
			ID: 11, ShopID: 5, SeatID: &seatID, StartsAt: startsAt, EndsAt: endsAt, Capacity: 2, Status: slot.StatusBlocked,
		}, nil)

		handler := NewSlotHandler(mockService)
		body := `{"seat_id":3,"starts_at":"2030-06-10T18:00:00+09:00","ends_at":"2030-06-10T19:00:00+09:00","capacity":2,"status":"blocked"}`
		c, rec := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		require.NoError(t, handler.Create(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("JST以外のオフセットは400", func(t *testing.T) {
		mockService := new(MockSlotService)
		handler := NewSlotHandler(mockService)
		body := `{"starts_at":"2030-06-10T09:00:00Z","ends_at":"2030-06-10T10:00:00Z","capacity":4}`
		c, _ := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		requireHTTPError(t, handler.Create(c), http.StatusBadRequest)
		mockService.AssertNotCalled(t, "CreateSlot", mock.Anything, mock.Anything)
	})

	t.Run("タイムゾーンなしは400", func(t *testing.T) {
		handler := NewSlotHandler(new(MockSlotService))
		body := `{"starts_at":"2030-06-10T18:00:00","ends_at":"2030-06-10T19:00:00","capacity":4}`
		c, _ := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		requireHTTPError(t, handler.Create(c), http.StatusBadRequest)
	})

	t.Run("開始日時がない場合は400", func(t *testing.T) {
		handler := NewSlotHandler(new(MockSlotService))
		c, _ := newSlotContext(e, http.MethodPost, "/shops/5/slots", `{"ends_at":"2030-06-10T19:00:00+09:00","capacity":4}`, "5")

		requireHTTPError(t, handler.Create(c), http.StatusBadRequest)
	})

	t.Run("入力検証エラーは400", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("CreateSlot", mock.Anything, mock.Anything).Return(nil, slot.ErrInvalidCapacity)

		handler := NewSlotHandler(mockService)
		body := `{"starts_at":"2030-06-10T18:00:00+09:00","ends_at":"2030-06-10T19:00:00+09:00","capacity":0}`
		c, _ := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		requireHTTPError(t, handler.Create(c), http.StatusBadRequest)
	})

	t.Run("同じ時間帯の枠がある場合は409", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("CreateSlot", mock.Anything, mock.Anything).Return(nil, slot.ErrSlotAlreadyExists)

		handler := NewSlotHandler(mockService)
		body := `{"starts_at":"2030-06-10T18:00:00+09:00","ends_at":"2030-06-10T19:00:00+09:00","capacity":4}`
		c, _ := newSlotContext(e, http.MethodPost, "/shops/5/slots", body, "5")

		requireHTTPError(t, handler.Create(c), http.StatusConflict)
	})

	t.Run("店舗IDが不正な場合は400", func(t *testing.T) {
		handler := NewSlotHandler(new(MockSlotService))
		c, _ := newSlotContext(e, http.MethodPost, "/shops/x/slots", `{}`, "x")

		requireHTTPError(t, handler.Create(c), http.StatusBadRequest)
	})
}

func TestSlotHandler_Availability(t *testing.T) {
	e := NewTestEcho()
	start := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	availabilityURL := func(params url.Values) string {
		return "/shops/5/slots/availability?" + params.Encode()
	}

	t.Run("空き状況をJSTで返す", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("ListAvailability", mock.Anything, application.ListAvailabilityInput{
			ShopID: 5, Start: start, End: end,
		}).Return([]slot.Availability{{
			Slot: &slot.Slot{
				ID: 10, ShopID: 5, Capacity: 4, Status: slot.StatusOpen,
				StartsAt: start.Add(9 * time.Hour), EndsAt: start.Add(10 * time.Hour),
			},
			Remaining: 2,
		}}, nil)

		handler := NewSlotHandler(mockService)
		target := availabilityURL(url.Values{
			"start": {"2030-06-10T09:00:00+09:00"},
			"end":   {"2030-06-11T09:00:00+09:00"},
		})
		c, rec := newSlotContext(e, http.MethodGet, target, "", "5")

		err := handler.Availability(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp []SlotAvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, 2, resp[0].Remaining)
		assert.Equal(t, int64(10), resp[0].SlotID)
		assert.Contains(t, rec.Body.String(), `"starts_at":"2030-06-10T18:00:00+09:00"`)
		mockService.AssertExpectations(t)
	})

	t.Run("席で絞り込める", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("ListAvailability", mock.Anything, mock.MatchedBy(func(in application.ListAvailabilityInput) bool {
			return in.SeatID != nil && *in.SeatID == 3
		})).Return([]slot.Availability{}, nil)

		handler := NewSlotHandler(mockService)
		target := availabilityURL(url.Values{
			"start":   {"2030-06-10T00:00:00Z"},
			"end":     {"2030-06-11T00:00:00Z"},
			"seat_id": {"3"},
		})
		c, rec := newSlotContext(e, http.MethodGet, target, "", "5")

		require.NoError(t, handler.Availability(c))
		assert.JSONEq(t, `[]`, rec.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("タイムゾーンなしは400", func(t *testing.T) {
		mockService := new(MockSlotService)
		handler := NewSlotHandler(mockService)
		target := availabilityURL(url.Values{
			"start": {"2030-06-10T09:00:00"},
			"end":   {"2030-06-11T09:00:00"},
		})
		c, _ := newSlotContext(e, http.MethodGet, target, "", "5")

		requireHTTPError(t, handler.Availability(c), http.StatusBadRequest)
		mockService.AssertNotCalled(t, "ListAvailability", mock.Anything, mock.Anything)
	})

	t.Run("期間が逆転している場合は400", func(t *testing.T) {
		mockService := new(MockSlotService)
		mockService.On("ListAvailability", mock.Anything, mock.Anything).Return(nil, slot.ErrInvalidTimeRange)

		handler := NewSlotHandler(mockService)
		target := availabilityURL(url.Values{
			"start": {"2030-06-11T00:00:00Z"},
			"end":   {"2030-06-10T00:00:00Z"},
		})
		c, _ := newSlotContext(e, http.MethodGet, target, "", "5")

		requireHTTPError(t, handler.Availability(c), http.StatusBadRequest)
	})

	t.Run("席IDが不正な場合は400", func(t *testing.T) {
		handler := NewSlotHandler(new(MockSlotService))
		target := availabilityURL(url.Values{
			"start":   {"2030-06-10T00:00:00Z"},
			"end":     {"2030-06-11T00:00:00Z"},
			"seat_id": {"abc"},
		})
		c, _ := newSlotContext(e, http.MethodGet, target, "", "5")

		requireHTTPError(t, handler.Availability(c), http.StatusBadRequest)
	})
}
