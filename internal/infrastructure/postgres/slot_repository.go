package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/transaction"
)

const slotColumns = `s.id, s.shop_id, s.seat_id, s.starts_at, s.ends_at, s.capacity, s.status, s.created_at, s.updated_at`

type slotRow struct {
	ID        int64     `db:"id"`
	ShopID    int64     `db:"shop_id"`
	SeatID    null.Int  `db:"seat_id"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	Capacity  int       `db:"capacity"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *slotRow) toEntity() *slot.Slot {
	return &slot.Slot{
		ID: r.ID, ShopID: r.ShopID, SeatID: r.SeatID.Ptr(),
		StartsAt: r.StartsAt.UTC(), EndsAt: r.EndsAt.UTC(),
		Capacity: r.Capacity, Status: slot.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type slotWithReservedRow struct {
	slotRow
	Reserved int `db:"reserved"`
}

type SlotRepository struct{ db *sqlx.DB }

var _ slot.Repository = (*SlotRepository)(nil)

func NewSlotRepository(db *sqlx.DB) *SlotRepository { return &SlotRepository{db: db} }

// GetForUpdate は枠を SELECT ... FOR UPDATE で取得する
func (r *SlotRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*slot.Slot, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	var row slotRow
	query := `SELECT ` + slotColumns + ` FROM slots s WHERE s.id = $1 FOR UPDATE`
	if err := sqlTx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slot.ErrSlotNotFound
		}
		return nil, fmt.Errorf("枠取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SlotRepository) Create(ctx context.Context, s *slot.Slot) error {
	query := `INSERT INTO slots (shop_id, seat_id, starts_at, ends_at, capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		s.ShopID, null.IntFromPtr(s.SeatID), s.StartsAt, s.EndsAt, s.Capacity, string(s.Status), s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		switch pqCode(err) {
		case codeUniqueViolation:
			return slot.ErrSlotAlreadyExists
		case codeForeignKeyViolation:
			return slot.ErrShopNotFound
		}
		return fmt.Errorf("枠作成に失敗: %w", err)
	}
	return nil
}

// ListWithReserved は期間に完全に含まれる枠を、キャンセル以外の予約人数の合計とともに返す
func (r *SlotRepository) ListWithReserved(ctx context.Context, shopID int64, start, end time.Time, seatID *int64) ([]slot.WithReserved, error) {
	query := `SELECT ` + slotColumns + `,
			COALESCE(SUM(rv.party_size) FILTER (WHERE rv.status <> 'cancelled'), 0) AS reserved
		FROM slots s
		LEFT JOIN reservations rv ON rv.slot_id = s.id
		WHERE s.shop_id = $1
			AND s.starts_at >= $2
			AND s.ends_at <= $3
			AND ($4::bigint IS NULL OR s.seat_id = $4)
		GROUP BY s.id
		ORDER BY s.starts_at, s.id`
	var rows []slotWithReservedRow
	if err := r.db.SelectContext(ctx, &rows, query, shopID, start.UTC(), end.UTC(), seatID); err != nil {
		return nil, fmt.Errorf("空き状況取得に失敗: %w", err)
	}
	result := make([]slot.WithReserved, len(rows))
	for i := range rows {
		result[i] = slot.WithReserved{Slot: rows[i].toEntity(), Reserved: rows[i].Reserved}
	}
	return result, nil
}

// CloseStarted は開始済みの open な枠をまとめて closed に更新する
func (r *SlotRepository) CloseStarted(ctx context.Context, now time.Time) ([]int64, error) {
	query := `UPDATE slots SET status = 'closed', updated_at = $1
		WHERE status = 'open' AND starts_at <= $1
		RETURNING shop_id`
	var shopIDs []int64
	if err := r.db.SelectContext(ctx, &shopIDs, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("開始済み枠の更新に失敗: %w", err)
	}
	return shopIDs, nil
}
