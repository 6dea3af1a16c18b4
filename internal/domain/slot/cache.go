package slot

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss はキャッシュに該当エントリがないことを表す
var ErrCacheMiss = errors.New("キャッシュが見つかりません")

// AvailabilityQuery は空き状況検索の条件（UTC）
type AvailabilityQuery struct {
	ShopID int64
	Start  time.Time
	End    time.Time
	SeatID *int64
}

// AvailabilityCache は空き状況検索結果のキャッシュ
// 店舗単位で無効化でき、無効化後は以前のエントリを返さない
type AvailabilityCache interface {
	// Get はエントリと参照した店舗の世代を返す。ミスの場合も世代を返す
	Get(ctx context.Context, q AvailabilityQuery) ([]Availability, int64, error)
	// Set は Get が返した世代でエントリを保存する
	// 間に InvalidateShop が走っていた場合、そのエントリは二度と読まれない
	Set(ctx context.Context, q AvailabilityQuery, gen int64, items []Availability) error
	InvalidateShop(ctx context.Context, shopID int64) error
}
