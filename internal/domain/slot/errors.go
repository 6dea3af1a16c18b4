package slot

import (
	"errors"
	"fmt"
)

// Slot ドメインのエラー定義
var (
	// ErrSlotNotOpen は枠が存在しない・閉じている等で予約に使えないことを表す
	ErrSlotNotOpen = errors.New("枠は予約を受け付けていません")
	// ErrSlotNotFound は ErrSlotNotOpen の一種として扱う
	ErrSlotNotFound      = fmt.Errorf("%w: 枠が見つかりません", ErrSlotNotOpen)
	ErrSlotAlreadyExists = errors.New("同じ時間帯の枠が既に存在します")

	// ErrValidation は入力値の検証エラー。ストア到達前に返される
	ErrValidation       = errors.New("入力値が不正です")
	ErrShopIDRequired   = fmt.Errorf("%w: 店舗IDは必須です", ErrValidation)
	ErrInvalidTimeRange = fmt.Errorf("%w: 開始時刻は終了時刻より前である必要があります", ErrValidation)
	ErrInvalidCapacity  = fmt.Errorf("%w: 定員は1以上である必要があります", ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: 枠の状態が不正です", ErrValidation)
	ErrShopNotFound     = fmt.Errorf("%w: 店舗が存在しません", ErrValidation)
)
