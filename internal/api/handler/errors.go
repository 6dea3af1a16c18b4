package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// toHTTPError はユースケースのエラーをHTTPエラーに変換する
// 想定外のエラーは内容を隠して 500 にする
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, application.ErrAuditFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, application.ErrAuditFailed.Error()).SetInternal(err)
	case errors.Is(err, reservation.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "予約が見つかりません")
	case errors.Is(err, slot.ErrSlotNotOpen):
		return echo.NewHTTPError(http.StatusNotFound, "枠が利用できません")
	case errors.Is(err, reservation.ErrDuplicateReservation),
		errors.Is(err, reservation.ErrCapacity),
		errors.Is(err, reservation.ErrVersionConflict),
		errors.Is(err, slot.ErrSlotAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrCancelNotAllowed),
		errors.Is(err, reservation.ErrRescheduleNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, slot.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
