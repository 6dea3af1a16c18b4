package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
)

type SlotService struct {
	slotRepo slot.Repository
	cache    slot.AvailabilityCache
	metrics  *metrics.Metrics
}

// NewSlotService は SlotService を作成する。cache と m は nil でもよい
func NewSlotService(sr slot.Repository, cache slot.AvailabilityCache, m *metrics.Metrics) *SlotService {
	return &SlotService{slotRepo: sr, cache: cache, metrics: m}
}

type CreateSlotInput struct {
	ShopID   int64
	SeatID   *int64
	StartsAt time.Time
	EndsAt   time.Time
	Capacity int
	Status   slot.Status
}

// CreateSlot は入力を検証してから枠を作成する
func (s *SlotService) CreateSlot(ctx context.Context, input CreateSlotInput) (*slot.Slot, error) {
	sl := slot.NewSlot(input.ShopID, input.SeatID, input.StartsAt, input.EndsAt, input.Capacity, input.Status)
	if err := sl.Validate(); err != nil {
		return nil, err
	}
	if err := s.slotRepo.Create(ctx, sl); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sl.ShopID)
	return sl, nil
}

type ListAvailabilityInput struct {
	ShopID int64
	Start  time.Time
	End    time.Time
	SeatID *int64
}

// ListAvailability は期間内の open な枠と残数を返す
func (s *SlotService) ListAvailability(ctx context.Context, input ListAvailabilityInput) ([]slot.Availability, error) {
	if input.ShopID <= 0 {
		return nil, slot.ErrShopIDRequired
	}
	if input.End.Before(input.Start) {
		return nil, slot.ErrInvalidTimeRange
	}
	q := slot.AvailabilityQuery{
		ShopID: input.ShopID,
		Start:  input.Start.UTC(),
		End:    input.End.UTC(),
		SeatID: input.SeatID,
	}

	// キャッシュから取得を試みる。ミスの場合のみ、参照した世代で後から保存する
	var (
		gen      int64
		storable bool
	)
	if s.cache != nil {
		items, g, err := s.cache.Get(ctx, q)
		if err == nil {
			s.metrics.ObserveCache("hit")
			logger.Debug("キャッシュヒット", zap.Int64("shop_id", q.ShopID), zap.Int("count", len(items)))
			return items, nil
		}
		if errors.Is(err, slot.ErrCacheMiss) {
			s.metrics.ObserveCache("miss")
			gen, storable = g, true
		} else {
			s.metrics.ObserveCache("error")
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	rows, err := s.slotRepo.ListWithReserved(ctx, q.ShopID, q.Start, q.End, q.SeatID)
	if err != nil {
		return nil, err
	}
	items := make([]slot.Availability, 0, len(rows))
	for _, row := range rows {
		if !row.Slot.IsOpen() {
			continue
		}
		items = append(items, slot.Availability{
			Slot:      row.Slot,
			Remaining: slot.Remaining(row.Slot.Capacity, row.Reserved),
		})
	}

	// キャッシュに保存
	if storable {
		if cacheErr := s.cache.Set(ctx, q, gen, items); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return items, nil
}

// CloseStartedSlots は開始済みの枠を閉じ、閉じた枠の数を返す
// 影響のあった店舗ごとに空き状況キャッシュを無効化する
func (s *SlotService) CloseStartedSlots(ctx context.Context, now time.Time) (int, error) {
	shopIDs, err := s.slotRepo.CloseStarted(ctx, now)
	if err != nil {
		return 0, err
	}
	seen := make(map[int64]struct{}, len(shopIDs))
	for _, id := range shopIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.invalidate(ctx, id)
	}
	return len(shopIDs), nil
}

func (s *SlotService) invalidate(ctx context.Context, shopID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateShop(ctx, shopID); err != nil {
		logger.FromContext(ctx).Warn("キャッシュ無効化エラー", zap.Int64("shop_id", shopID), zap.Error(err))
	}
}
