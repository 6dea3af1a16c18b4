package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/api/middleware"
	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type CreateReservationRequest struct {
	SlotID    int64 `json:"slot_id" validate:"required,min=1" example:"10"`
	PartySize int   `json:"party_size" validate:"min=1" example:"2"`
}

// CancelReservationRequest は If-Match がない場合に使うバージョン
type CancelReservationRequest struct {
	Version *int `json:"version,omitempty" example:"1"`
}

type RescheduleReservationRequest struct {
	SlotID  int64 `json:"slot_id" validate:"required,min=1" example:"11"`
	Version *int  `json:"version,omitempty" example:"1"`
}

// ReservationResponse は予約と枠の情報。日時は日本標準時で返す
type ReservationResponse struct {
	ReservationID  int64     `json:"reservation_id" example:"1"`
	SlotID         int64     `json:"slot_id" example:"10"`
	UserID         int64     `json:"user_id" example:"42"`
	PartySize      int       `json:"party_size" example:"2"`
	Status         string    `json:"status" example:"booked"`
	Version        int       `json:"version" example:"1"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	SeatID         *int64    `json:"seat_id"`
	ShopID         int64     `json:"shop_id" example:"1"`
	PreviousSlotID *int64    `json:"previous_slot_id,omitempty"`
}

func toReservationResponse(d reservation.Detail) ReservationResponse {
	r, s := d.Reservation, d.Slot
	return ReservationResponse{
		ReservationID: r.ID, SlotID: r.SlotID, UserID: r.UserID,
		PartySize: r.PartySize, Status: string(r.Status), Version: r.Version,
		StartsAt: toJST(s.StartsAt), EndsAt: toJST(s.EndsAt),
		SeatID: s.SeatID, ShopID: s.ShopID,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 枠の残数と重複を確認して予約します
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "枠が利用できない"
// @Failure 409 {object} api.ErrorResponse "重複予約・定員超過"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	d, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		SlotID: req.SlotID, UserID: userID, PartySize: req.PartySize,
	})
	if err != nil {
		return toHTTPError(err)
	}
	c.Response().Header().Set(headerETag, etag(d.Reservation.Version))
	return c.JSON(http.StatusCreated, toReservationResponse(*d))
}

// List godoc
// @Summary 自分の予約一覧を取得
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param status query string false "予約状態" Enums(booked, cancelled, cancel_pending)
// @Success 200 {array} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /me/reservations [get]
func (h *ReservationHandler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var status *reservation.Status
	if raw := c.QueryParam("status"); raw != "" {
		st, err := reservation.ParseStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		status = &st
	}
	details, err := h.service.ListUserReservations(c.Request().Context(), userID, status)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]ReservationResponse, len(details))
	for i, d := range details {
		resp[i] = toReservationResponse(d)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary 自分の予約を取得
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param reservation_id path int true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /me/reservations/{reservation_id} [get]
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	id, err := reservationIDParam(c)
	if err != nil {
		return err
	}
	d, err := h.service.GetUserReservation(c.Request().Context(), id, userID)
	if err != nil {
		return toHTTPError(err)
	}
	c.Response().Header().Set(headerETag, etag(d.Reservation.Version))
	return c.JSON(http.StatusOK, toReservationResponse(*d))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 開始48時間前まで受け付けます。キャンセル済みの予約はそのまま返します
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reservation_id path int true "予約ID"
// @Param If-Match header string false "期待するバージョン（例: W/\"1\"）"
// @Param request body CancelReservationRequest false "If-Match がない場合のバージョン"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse "締切後"
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "バージョン不一致"
// @Router /me/reservations/{reservation_id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	id, err := reservationIDParam(c)
	if err != nil {
		return err
	}
	var req CancelReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	version, err := extractVersion(c.Request().Header.Get(headerIfMatch), req.Version)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.service.CancelReservation(c.Request().Context(), application.CancelReservationInput{
		ReservationID: id, UserID: userID, Version: version,
	})
	if err != nil {
		return toHTTPError(err)
	}
	c.Response().Header().Set(headerETag, etag(d.Reservation.Version))
	return c.JSON(http.StatusOK, toReservationResponse(*d))
}

// Reschedule godoc
// @Summary 予約の日時を変更
// @Description 同じ店舗の別の枠へ移します。開始48時間前まで受け付けます
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reservation_id path int true "予約ID"
// @Param If-Match header string false "期待するバージョン（例: W/\"1\"）"
// @Param request body RescheduleReservationRequest true "変更先の枠"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse "締切後・別店舗"
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "重複予約・定員超過・バージョン不一致"
// @Router /me/reservations/{reservation_id}/reschedule [post]
func (h *ReservationHandler) Reschedule(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	id, err := reservationIDParam(c)
	if err != nil {
		return err
	}
	var req RescheduleReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	version, err := extractVersion(c.Request().Header.Get(headerIfMatch), req.Version)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.RescheduleReservation(c.Request().Context(), application.RescheduleReservationInput{
		ReservationID: id, UserID: userID, NewSlotID: req.SlotID, Version: version,
	})
	if err != nil {
		return toHTTPError(err)
	}
	resp := toReservationResponse(result.Detail)
	resp.PreviousSlotID = &result.PreviousSlotID
	c.Response().Header().Set(headerETag, etag(result.Reservation.Version))
	return c.JSON(http.StatusOK, resp)
}

func reservationIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "予約IDが不正です")
	}
	return id, nil
}
