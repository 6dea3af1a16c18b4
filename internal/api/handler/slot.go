package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

type SlotHandler struct {
	service SlotServiceInterface
}

func NewSlotHandler(s SlotServiceInterface) *SlotHandler {
	return &SlotHandler{service: s}
}

// CreateSlotRequest の日時は +09:00 付きの RFC3339 で受け付ける
type CreateSlotRequest struct {
	SeatID   *int64 `json:"seat_id" validate:"omitempty,min=1" example:"3"`
	StartsAt string `json:"starts_at" validate:"required" example:"2030-06-10T18:00:00+09:00"`
	EndsAt   string `json:"ends_at" validate:"required" example:"2030-06-10T19:00:00+09:00"`
	Capacity int    `json:"capacity" example:"4"`
	Status   string `json:"status,omitempty" example:"open"`
}

type SlotResponse struct {
	SlotID   int64     `json:"slot_id" example:"10"`
	ShopID   int64     `json:"shop_id" example:"1"`
	SeatID   *int64    `json:"seat_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Capacity int       `json:"capacity" example:"4"`
	Status   string    `json:"status" example:"open"`
}

type SlotAvailabilityResponse struct {
	SlotResponse
	Remaining int `json:"remaining" example:"2"`
}

func toSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		SlotID: s.ID, ShopID: s.ShopID, SeatID: s.SeatID,
		StartsAt: toJST(s.StartsAt), EndsAt: toJST(s.EndsAt),
		Capacity: s.Capacity, Status: string(s.Status),
	}
}

// Create godoc
// @Summary 枠を作成
// @Tags slots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param shop_id path int true "店舗ID"
// @Param request body CreateSlotRequest true "枠情報"
// @Success 201 {object} SlotResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "同じ時間帯の枠が既に存在する"
// @Router /shops/{shop_id}/slots [post]
func (h *SlotHandler) Create(c echo.Context) error {
	shopID, err := shopIDParam(c)
	if err != nil {
		return err
	}
	var req CreateSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	startsAt, err := parseJSTInstant(req.StartsAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "starts_at: "+err.Error())
	}
	endsAt, err := parseJSTInstant(req.EndsAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ends_at: "+err.Error())
	}

	s, err := h.service.CreateSlot(c.Request().Context(), application.CreateSlotInput{
		ShopID: shopID, SeatID: req.SeatID,
		StartsAt: startsAt, EndsAt: endsAt,
		Capacity: req.Capacity, Status: slot.Status(req.Status),
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toSlotResponse(s))
}

// Availability godoc
// @Summary 空き状況を取得
// @Description 期間内の open な枠と残数を返します
// @Tags slots
// @Produce json
// @Security BearerAuth
// @Param shop_id path int true "店舗ID"
// @Param start query string true "開始日時（タイムゾーン付き ISO 8601）"
// @Param end query string true "終了日時（タイムゾーン付き ISO 8601）"
// @Param seat_id query int false "席ID"
// @Success 200 {array} SlotAvailabilityResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /shops/{shop_id}/slots/availability [get]
func (h *SlotHandler) Availability(c echo.Context) error {
	shopID, err := shopIDParam(c)
	if err != nil {
		return err
	}
	start, err := parseInstant(c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start: "+err.Error())
	}
	end, err := parseInstant(c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end: "+err.Error())
	}
	var seatID *int64
	if raw := c.QueryParam("seat_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "席IDが不正です")
		}
		seatID = &id
	}

	items, err := h.service.ListAvailability(c.Request().Context(), application.ListAvailabilityInput{
		ShopID: shopID, Start: start, End: end, SeatID: seatID,
	})
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]SlotAvailabilityResponse, len(items))
	for i, item := range items {
		resp[i] = SlotAvailabilityResponse{SlotResponse: toSlotResponse(item.Slot), Remaining: item.Remaining}
	}
	return c.JSON(http.StatusOK, resp)
}

func shopIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("shop_id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "店舗IDが不正です")
	}
	return id, nil
}
