package reservation

import (
	"context"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
// tx を受け取るメソッドは呼び出し側のトランザクション内で実行される
type Repository interface {
	// UserHasActive は利用者がその枠に有効な予約を持っているかを返す
	UserHasActive(ctx context.Context, tx transaction.Tx, slotID, userID int64) (bool, error)

	// SumReserved は枠の有効な予約人数の合計を返す
	SumReserved(ctx context.Context, tx transaction.Tx, slotID int64) (int, error)

	// GetForUserForUpdate は利用者の予約を行ロック付きで、枠をロックなしで取得する
	// 存在しない・他人の予約の場合は ErrReservationNotFound
	GetForUserForUpdate(ctx context.Context, tx transaction.Tx, id, userID int64) (*Reservation, *slot.Slot, error)

	// Create は新しい予約を作成し ID を設定する
	Create(ctx context.Context, tx transaction.Tx, r *Reservation) error

	// ListByUser は利用者の予約一覧を返す。status が nil の場合は全状態
	ListByUser(ctx context.Context, userID int64, status *Status) ([]Detail, error)

	// GetForUser は利用者の予約と枠を取得する（ロックなし）
	GetForUser(ctx context.Context, id, userID int64) (*Reservation, *slot.Slot, error)

	// Cancel はキャンセル済みの状態を永続化する
	Cancel(ctx context.Context, tx transaction.Tx, r *Reservation) error

	// Reschedule は枠の変更を永続化する
	Reschedule(ctx context.Context, tx transaction.Tx, r *Reservation) error
}
