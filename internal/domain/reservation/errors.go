package reservation

import (
	"errors"
	"fmt"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// Reservation ドメインのエラー定義
var (
	// ErrReservationNotFound は存在しない場合と他人の予約の場合を区別しない
	// 呼び出し側には slot.ErrSlotNotOpen と同じ系統として見える
	ErrReservationNotFound = fmt.Errorf("%w: 予約が見つかりません", slot.ErrSlotNotOpen)

	ErrDuplicateReservation = errors.New("この枠には既に有効な予約があります")

	// ErrCapacity は人数に関するエラーの系統
	ErrCapacity         = errors.New("人数が不正または定員を超えています")
	ErrInvalidPartySize = fmt.Errorf("%w: 人数は1以上である必要があります", ErrCapacity)
	ErrCapacityExceeded = fmt.Errorf("%w: 残り枠が不足しています", ErrCapacity)

	ErrVersionConflict      = errors.New("予約のバージョンが一致しません")
	ErrCancelNotAllowed     = errors.New("キャンセル受付期間を過ぎています")
	ErrRescheduleNotAllowed = errors.New("この予約は日時変更できません")
	ErrAlreadyCancelled     = errors.New("予約は既にキャンセルされています")
	ErrInvalidStatus        = errors.New("予約の状態が不正です")
)
