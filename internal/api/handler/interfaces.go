package handler

import (
	"context"

	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// SlotServiceInterface は枠サービスのインターフェース
type SlotServiceInterface interface {
	CreateSlot(ctx context.Context, input application.CreateSlotInput) (*slot.Slot, error)
	ListAvailability(ctx context.Context, input application.ListAvailabilityInput) ([]slot.Availability, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Detail, error)
	CancelReservation(ctx context.Context, input application.CancelReservationInput) (*reservation.Detail, error)
	RescheduleReservation(ctx context.Context, input application.RescheduleReservationInput) (*application.RescheduleResult, error)
	ListUserReservations(ctx context.Context, userID int64, status *reservation.Status) ([]reservation.Detail, error)
	GetUserReservation(ctx context.Context, reservationID, userID int64) (*reservation.Detail, error)
}
