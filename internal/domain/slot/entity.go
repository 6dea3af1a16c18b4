package slot

import "time"

// Status は枠の状態を表す
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusBlocked Status = "blocked"
)

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusBlocked:
		return true
	}
	return false
}

// Slot は店舗の予約可能な時間枠を表す
// StartsAt / EndsAt は常に UTC で保持する
type Slot struct {
	ID        int64
	ShopID    int64
	SeatID    *int64
	StartsAt  time.Time
	EndsAt    time.Time
	Capacity  int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSlot は新しい枠を作成する。状態が未指定の場合は open とする
func NewSlot(shopID int64, seatID *int64, startsAt, endsAt time.Time, capacity int, status Status) *Slot {
	if status == "" {
		status = StatusOpen
	}
	now := time.Now().UTC()
	return &Slot{
		ShopID:    shopID,
		SeatID:    seatID,
		StartsAt:  startsAt.UTC(),
		EndsAt:    endsAt.UTC(),
		Capacity:  capacity,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOpen は枠が予約を受け付けているかを返す
func (s *Slot) IsOpen() bool {
	return s.Status == StatusOpen
}

// Validate は枠の検証を行う
func (s *Slot) Validate() error {
	if s.ShopID <= 0 {
		return ErrShopIDRequired
	}
	if !s.StartsAt.Before(s.EndsAt) {
		return ErrInvalidTimeRange
	}
	if s.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if !s.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Remaining は予約済み人数を差し引いた残数を返す（負にはならない）
func Remaining(capacity, reserved int) int {
	if r := capacity - reserved; r > 0 {
		return r
	}
	return 0
}

// WithReserved は枠と有効な予約人数の合計の組
type WithReserved struct {
	Slot     *Slot
	Reserved int
}

// Availability は空き状況の1件を表す
type Availability struct {
	Slot      *Slot
	Remaining int
}
