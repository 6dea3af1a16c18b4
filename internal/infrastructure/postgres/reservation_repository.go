package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/transaction"
)

// 予約と枠を1行で取得するための列。枠の列は slot_ 接頭辞を付ける
const reservationDetailColumns = `r.id, r.slot_id, r.user_id, r.party_size, r.status, r.version, r.created_at, r.updated_at,
	s.shop_id AS slot_shop_id, s.seat_id AS slot_seat_id, s.starts_at AS slot_starts_at, s.ends_at AS slot_ends_at,
	s.capacity AS slot_capacity, s.status AS slot_status, s.created_at AS slot_created_at, s.updated_at AS slot_updated_at`

type reservationDetailRow struct {
	ID        int64     `db:"id"`
	SlotID    int64     `db:"slot_id"`
	UserID    int64     `db:"user_id"`
	PartySize int       `db:"party_size"`
	Status    string    `db:"status"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	SlotShopID    int64     `db:"slot_shop_id"`
	SlotSeatID    null.Int  `db:"slot_seat_id"`
	SlotStartsAt  time.Time `db:"slot_starts_at"`
	SlotEndsAt    time.Time `db:"slot_ends_at"`
	SlotCapacity  int       `db:"slot_capacity"`
	SlotStatus    string    `db:"slot_status"`
	SlotCreatedAt time.Time `db:"slot_created_at"`
	SlotUpdatedAt time.Time `db:"slot_updated_at"`
}

func (r *reservationDetailRow) toEntities() (*reservation.Reservation, *slot.Slot) {
	res := &reservation.Reservation{
		ID: r.ID, SlotID: r.SlotID, UserID: r.UserID, PartySize: r.PartySize,
		Status: reservation.Status(r.Status), Version: r.Version,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
	sl := &slot.Slot{
		ID: r.SlotID, ShopID: r.SlotShopID, SeatID: r.SlotSeatID.Ptr(),
		StartsAt: r.SlotStartsAt.UTC(), EndsAt: r.SlotEndsAt.UTC(),
		Capacity: r.SlotCapacity, Status: slot.Status(r.SlotStatus),
		CreatedAt: r.SlotCreatedAt.UTC(), UpdatedAt: r.SlotUpdatedAt.UTC(),
	}
	return res, sl
}

type ReservationRepository struct{ db *sqlx.DB }

var _ reservation.Repository = (*ReservationRepository)(nil)

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) UserHasActive(ctx context.Context, tx transaction.Tx, slotID, userID int64) (bool, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return false, err
	}
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM reservations WHERE slot_id = $1 AND user_id = $2 AND status <> 'cancelled'
	)`
	if err := sqlTx.GetContext(ctx, &exists, query, slotID, userID); err != nil {
		return false, fmt.Errorf("有効な予約の確認に失敗: %w", err)
	}
	return exists, nil
}

func (r *ReservationRepository) SumReserved(ctx context.Context, tx transaction.Tx, slotID int64) (int, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return 0, err
	}
	var sum int
	query := `SELECT COALESCE(SUM(party_size), 0) FROM reservations WHERE slot_id = $1 AND status <> 'cancelled'`
	if err := sqlTx.GetContext(ctx, &sum, query, slotID); err != nil {
		return 0, fmt.Errorf("予約人数の集計に失敗: %w", err)
	}
	return sum, nil
}

// GetForUserForUpdate は予約の行だけをロックし、枠とともに取得する
// 枠のロックは呼び出し側が ID の昇順で取る
func (r *ReservationRepository) GetForUserForUpdate(ctx context.Context, tx transaction.Tx, id, userID int64) (*reservation.Reservation, *slot.Slot, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, nil, err
	}
	var row reservationDetailRow
	query := `SELECT ` + reservationDetailColumns + `
		FROM reservations r JOIN slots s ON s.id = r.slot_id
		WHERE r.id = $1 AND r.user_id = $2
		FOR UPDATE OF r`
	if err := sqlTx.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, reservation.ErrReservationNotFound
		}
		return nil, nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	res, sl := row.toEntities()
	return res, sl, nil
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (slot_id, user_id, party_size, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err = sqlTx.QueryRowContext(ctx, query,
		res.SlotID, res.UserID, res.PartySize, string(res.Status), res.Version, res.CreatedAt, res.UpdatedAt,
	).Scan(&res.ID)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return reservation.ErrDuplicateReservation
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID int64, status *reservation.Status) ([]reservation.Detail, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	query := `SELECT ` + reservationDetailColumns + `
		FROM reservations r JOIN slots s ON s.id = r.slot_id
		WHERE r.user_id = $1 AND ($2::text IS NULL OR r.status = $2)
		ORDER BY s.starts_at, r.id`
	var rows []reservationDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, statusArg); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]reservation.Detail, len(rows))
	for i := range rows {
		res, sl := rows[i].toEntities()
		result[i] = reservation.Detail{Reservation: res, Slot: sl}
	}
	return result, nil
}

func (r *ReservationRepository) GetForUser(ctx context.Context, id, userID int64) (*reservation.Reservation, *slot.Slot, error) {
	var row reservationDetailRow
	query := `SELECT ` + reservationDetailColumns + `
		FROM reservations r JOIN slots s ON s.id = r.slot_id
		WHERE r.id = $1 AND r.user_id = $2`
	if err := r.db.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, reservation.ErrReservationNotFound
		}
		return nil, nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	res, sl := row.toEntities()
	return res, sl, nil
}

// Cancel は res.Version-1 の行だけを更新する。一致しなければ ErrVersionConflict
func (r *ReservationRepository) Cancel(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	query := `UPDATE reservations SET status = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5`
	return r.update(ctx, tx, query, string(res.Status), res.Version, res.UpdatedAt, res.ID, res.Version-1)
}

// Reschedule は res.Version-1 の行だけを更新する。一致しなければ ErrVersionConflict
func (r *ReservationRepository) Reschedule(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	query := `UPDATE reservations SET slot_id = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5`
	return r.update(ctx, tx, query, res.SlotID, res.Version, res.UpdatedAt, res.ID, res.Version-1)
}

func (r *ReservationRepository) update(ctx context.Context, tx transaction.Tx, query string, args ...any) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	result, err := sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return reservation.ErrDuplicateReservation
		}
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	if rows == 0 {
		return reservation.ErrVersionConflict
	}
	return nil
}
