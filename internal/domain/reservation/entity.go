package reservation

import (
	"time"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// Status は予約の状態を表す
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	// StatusCancelPending は非同期のキャンセル確認フロー用に予約している状態
	// 現在のキャンセルは同期的に完了するため、この状態へ遷移する経路はない
	StatusCancelPending Status = "cancel_pending"
)

// ParseStatus は文字列から予約状態を取得する
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusBooked, StatusCancelled, StatusCancelPending:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// ChangeCutoff は利用者によるキャンセル・日時変更を受け付ける開始前の最小猶予
const ChangeCutoff = 48 * time.Hour

// InitialVersion は新規予約のバージョン
const InitialVersion = 1

// Reservation は予約エンティティを表す
type Reservation struct {
	ID        int64
	SlotID    int64
	UserID    int64
	PartySize int
	Status    Status
	Version   int // 楽観的ロック用
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReservation は booked 状態の新しい予約を作成する
func NewReservation(slotID, userID int64, partySize int, now time.Time) *Reservation {
	now = now.UTC()
	return &Reservation{
		SlotID:    slotID,
		UserID:    userID,
		PartySize: partySize,
		Status:    StatusBooked,
		Version:   InitialVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCancelled は予約がキャンセル済みかを返す
func (r *Reservation) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// IsBooked は予約が有効な確保状態かを返す
func (r *Reservation) IsBooked() bool {
	return r.Status == StatusBooked
}

// CheckVersion はクライアントが期待するバージョンと一致するかを確認する
func (r *Reservation) CheckVersion(expected int) error {
	if r.Version != expected {
		return ErrVersionConflict
	}
	return nil
}

// Cancel は予約をキャンセル済みにしてバージョンを進める
func (r *Reservation) Cancel(now time.Time) error {
	if r.IsCancelled() {
		return ErrAlreadyCancelled
	}
	r.Status = StatusCancelled
	r.Version++
	r.UpdatedAt = now.UTC()
	return nil
}

// MoveTo は予約を別の枠へ移してバージョンを進める
func (r *Reservation) MoveTo(slotID int64, now time.Time) error {
	if !r.IsBooked() {
		return ErrRescheduleNotAllowed
	}
	r.SlotID = slotID
	r.Version++
	r.UpdatedAt = now.UTC()
	return nil
}

// WithinCutoff は now が開始時刻の ChangeCutoff 前以降かを返す
// 境界ちょうどは締切済みとみなす
func WithinCutoff(startsAt, now time.Time) bool {
	deadline := startsAt.UTC().Add(-ChangeCutoff)
	return !now.UTC().Before(deadline)
}

// Detail は予約と紐づく枠の組
type Detail struct {
	Reservation *Reservation
	Slot        *slot.Slot
}
