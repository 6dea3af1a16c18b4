package reservation

import "github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"

// SlotSnapshot はロック取得後に組み立てる検証用の枠の状態
// 永続化はせず、操作ごとに作り直す
type SlotSnapshot struct {
	Status                   slot.Status
	Capacity                 int
	Reserved                 int
	UserHasActiveReservation bool
}

// ValidateBooking は予約の受付可否を判定し、受付後の残数を返す
// 判定順は固定で、最初に失敗した条件のエラーを返す
//  1. 同一利用者の有効な予約がある
//  2. 枠が open ではない
//  3. 人数が1未満
//  4. 人数が残数を超える
func ValidateBooking(s SlotSnapshot, partySize int) (int, error) {
	if s.UserHasActiveReservation {
		return 0, ErrDuplicateReservation
	}
	if s.Status != slot.StatusOpen {
		return 0, slot.ErrSlotNotOpen
	}
	if partySize <= 0 {
		return 0, ErrInvalidPartySize
	}
	remaining := s.Capacity - s.Reserved
	if partySize > remaining {
		return 0, ErrCapacityExceeded
	}
	return remaining - partySize, nil
}
