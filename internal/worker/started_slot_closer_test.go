package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockSlotCloser はSlotCloserのモック
type MockSlotCloser struct {
	mock.Mock
}

func (m *MockSlotCloser) CloseStartedSlots(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func newTestCloser(sc SlotCloser, now time.Time) *StartedSlotCloser {
	w := NewStartedSlotCloser(sc, time.Minute)
	w.now = func() time.Time { return now }
	return w
}

func TestNewStartedSlotCloser(t *testing.T) {
	mockService := new(MockSlotCloser)

	w := NewStartedSlotCloser(mockService, time.Minute)

	assert.NotNil(t, w)
	assert.Equal(t, time.Minute, w.interval)
	assert.NotNil(t, w.stopCh)
	assert.NotNil(t, w.doneCh)
	assert.Equal(t, time.UTC, w.now().Location())
}

func TestStartedSlotCloser_CloseStarted(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("現在時刻で枠を閉じる", func(t *testing.T) {
		mockService := new(MockSlotCloser)
		mockService.On("CloseStartedSlots", mock.Anything, now).Return(3, nil)

		newTestCloser(mockService, now).closeStarted(context.Background())

		mockService.AssertExpectations(t)
	})

	t.Run("対象がない場合も正常に動作する", func(t *testing.T) {
		mockService := new(MockSlotCloser)
		mockService.On("CloseStartedSlots", mock.Anything, now).Return(0, nil)

		newTestCloser(mockService, now).closeStarted(context.Background())

		mockService.AssertExpectations(t)
	})

	t.Run("エラーが発生しても継続する", func(t *testing.T) {
		mockService := new(MockSlotCloser)
		mockService.On("CloseStartedSlots", mock.Anything, now).Return(0, assert.AnError)

		newTestCloser(mockService, now).closeStarted(context.Background())

		mockService.AssertExpectations(t)
	})
}

func TestStartedSlotCloser_StartStop(t *testing.T) {
	t.Run("開始と停止が正常に動作する", func(t *testing.T) {
		mockService := new(MockSlotCloser)
		mockService.On("CloseStartedSlots", mock.Anything, mock.Anything).Return(0, nil).Maybe()

		w := NewStartedSlotCloser(mockService, 50*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Start(ctx)
		time.Sleep(120 * time.Millisecond)
		w.Stop()

		select {
		case <-w.doneCh:
		case <-time.After(time.Second):
			t.Error("closer did not stop in time")
		}
	})

	t.Run("コンテキストキャンセルで停止する", func(t *testing.T) {
		mockService := new(MockSlotCloser)
		mockService.On("CloseStartedSlots", mock.Anything, mock.Anything).Return(0, nil).Maybe()

		w := NewStartedSlotCloser(mockService, 50*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Start(ctx)
			close(done)
		}()

		time.Sleep(80 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("closer did not stop after context cancel")
		}
	})
}
