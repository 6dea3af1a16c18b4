package slot

import (
	"context"
	"time"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/transaction"
)

// Repository は枠リポジトリのインターフェース
type Repository interface {
	// GetForUpdate は行ロック付きで枠を取得する（トランザクション必須）
	// 存在しない場合は ErrSlotNotFound を返す
	GetForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*Slot, error)

	// Create は新しい枠を作成する。一意制約違反は ErrSlotAlreadyExists
	Create(ctx context.Context, s *Slot) error

	// ListWithReserved は期間内の枠を有効な予約人数の合計とともに返す
	ListWithReserved(ctx context.Context, shopID int64, start, end time.Time, seatID *int64) ([]WithReserved, error)

	// CloseStarted は開始時刻が now 以前の open な枠を closed にする
	// 戻り値は閉じた枠ごとの店舗ID
	CloseStarted(ctx context.Context, now time.Time) ([]int64, error)
}
