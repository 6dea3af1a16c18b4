package audit

import (
	"context"
	"time"
)

// Action は監査対象の操作を表す
type Action string

const (
	ActionReservationCreated       Action = "reservation.created"
	ActionReservationCancelled     Action = "reservation.cancelled"
	ActionReservationRescheduled   Action = "reservation.rescheduled"
	ActionReservationAutoCancelled Action = "reservation.autocancelled"
	ActionReservationShopCancelled Action = "reservation.shop_cancelled"
)

// Initiator は操作の起点を表す
type Initiator string

const (
	InitiatorUser   Initiator = "user"
	InitiatorSystem Initiator = "system"
	InitiatorShop   Initiator = "shop"
)

// Record は監査ログ1件を表す
// ポインタのフィールドは nil の場合に出力から省略される
type Record struct {
	Timestamp     time.Time
	Action        Action
	Initiator     Initiator
	ReservationID *int64
	SlotID        *int64
	ShopID        *int64
	UserID        *int64
	PartySize     *int
	StatusFrom    *string
	StatusTo      *string
	Version       *int
	SlotIDFrom    *int64
}

// Sink は監査ログの出力先
// Emit がエラーを返した場合、呼び出し側は操作全体を失敗させる
// リクエストIDは ctx から取得する
type Sink interface {
	Emit(ctx context.Context, r Record) error
}
