package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
)

// AvailabilityCache は空き状況の検索結果をキャッシュする
// キーに店舗ごとの世代番号を含め、InvalidateShop で世代を進めて古いエントリを参照不能にする
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ slot.AvailabilityCache = (*AvailabilityCache)(nil)

// NewAvailabilityCache は新しい AvailabilityCache を作成する
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

type availabilityEntry struct {
	SlotID    int64     `json:"slot_id"`
	ShopID    int64     `json:"shop_id"`
	SeatID    *int64    `json:"seat_id,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Capacity  int       `json:"capacity"`
	Status    string    `json:"status"`
	Remaining int       `json:"remaining"`
}

// Get はキャッシュ済みの空き状況と参照した世代を返す。存在しない場合は slot.ErrCacheMiss
func (c *AvailabilityCache) Get(ctx context.Context, q slot.AvailabilityQuery) ([]slot.Availability, int64, error) {
	gen, err := c.generation(ctx, q.ShopID)
	if err != nil {
		return nil, 0, err
	}
	raw, err := c.client.Get(ctx, c.dataKey(q, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, slot.ErrCacheMiss
		}
		return nil, gen, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var entries []availabilityEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, gen, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	items := make([]slot.Availability, len(entries))
	for i, e := range entries {
		items[i] = slot.Availability{
			Slot: &slot.Slot{
				ID: e.SlotID, ShopID: e.ShopID, SeatID: e.SeatID,
				StartsAt: e.StartsAt.UTC(), EndsAt: e.EndsAt.UTC(),
				Capacity: e.Capacity, Status: slot.Status(e.Status),
			},
			Remaining: e.Remaining,
		}
	}
	return items, gen, nil
}

// Set は空き状況を gen の世代のキーで保存する
// gen は読み出し前に Get が返した値であること
func (c *AvailabilityCache) Set(ctx context.Context, q slot.AvailabilityQuery, gen int64, items []slot.Availability) error {
	entries := make([]availabilityEntry, len(items))
	for i, it := range items {
		entries[i] = availabilityEntry{
			SlotID: it.Slot.ID, ShopID: it.Slot.ShopID, SeatID: it.Slot.SeatID,
			StartsAt: it.Slot.StartsAt, EndsAt: it.Slot.EndsAt,
			Capacity: it.Slot.Capacity, Status: string(it.Slot.Status),
			Remaining: it.Remaining,
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.dataKey(q, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// InvalidateShop は店舗の世代番号を進める
func (c *AvailabilityCache) InvalidateShop(ctx context.Context, shopID int64) error {
	if err := c.client.Incr(ctx, c.generationKey(shopID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) generation(ctx context.Context, shopID int64) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(shopID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("キャッシュ世代の取得に失敗: %w", err)
	}
	return gen, nil
}

func (c *AvailabilityCache) generationKey(shopID int64) string {
	return fmt.Sprintf("availability:gen:%d", shopID)
}

func (c *AvailabilityCache) dataKey(q slot.AvailabilityQuery, gen int64) string {
	seat := "all"
	if q.SeatID != nil {
		seat = strconv.FormatInt(*q.SeatID, 10)
	}
	return fmt.Sprintf("availability:%d:%d:%d:%d:%s", q.ShopID, gen, q.Start.Unix(), q.End.Unix(), seat)
}
