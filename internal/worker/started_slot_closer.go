package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
)

// SlotCloser は開始済みの枠を閉じるインターフェース
type SlotCloser interface {
	CloseStartedSlots(ctx context.Context, now time.Time) (int, error)
}

// StartedSlotCloser は開始時刻を過ぎた open な枠を定期的に closed にするワーカー
type StartedSlotCloser struct {
	slotService SlotCloser
	interval    time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewStartedSlotCloser は新しいワーカーを作成
func NewStartedSlotCloser(sc SlotCloser, interval time.Duration) *StartedSlotCloser {
	return &StartedSlotCloser{
		slotService: sc,
		interval:    interval,
		now:         func() time.Time { return time.Now().UTC() },
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はワーカーを開始。ctx のキャンセルか Stop まで戻らない
func (w *StartedSlotCloser) Start(ctx context.Context) {
	logger.Info("開始済み枠クローザー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("開始済み枠クローザー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("開始済み枠クローザー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.closeStarted(ctx)
		}
	}
}

// Stop はワーカーを停止し、終了を待つ
func (w *StartedSlotCloser) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *StartedSlotCloser) closeStarted(ctx context.Context) {
	log := logger.Get()

	count, err := w.slotService.CloseStartedSlots(ctx, w.now())
	if err != nil {
		log.Error("開始済み枠の更新失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("開始済み枠を閉じました", zap.Int("count", count))
	} else {
		log.Debug("開始済み枠なし")
	}
}
