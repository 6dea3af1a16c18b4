package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/audit"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/reservation"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/transaction"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
)

// ErrAuditFailed は監査ログを出力できず操作を中止したことを表す
var ErrAuditFailed = errors.New("audit log failed")

const (
	operationCreate     = "create"
	operationCancel     = "cancel"
	operationReschedule = "reschedule"
)

// Clock は現在時刻の取得を抽象化する
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock は実時刻を返す Clock
var SystemClock Clock = systemClock{}

// ReservationService は予約の作成・キャンセル・日時変更を1トランザクションで実行する
type ReservationService struct {
	txManager       transaction.Manager
	slotRepo        slot.Repository
	reservationRepo reservation.Repository
	auditSink       audit.Sink
	cache           slot.AvailabilityCache
	clock           Clock
	metrics         *metrics.Metrics
}

// ReservationOption は ReservationService の任意設定
type ReservationOption func(*ReservationService)

// WithClock は時刻の取得元を差し替える
func WithClock(c Clock) ReservationOption {
	return func(s *ReservationService) { s.clock = c }
}

// WithReservationMetrics は操作結果を記録するメトリクスを設定する
func WithReservationMetrics(m *metrics.Metrics) ReservationOption {
	return func(s *ReservationService) { s.metrics = m }
}

// WithAvailabilityCache は更新後に無効化する空き状況キャッシュを設定する
func WithAvailabilityCache(c slot.AvailabilityCache) ReservationOption {
	return func(s *ReservationService) { s.cache = c }
}

func NewReservationService(txm transaction.Manager, sr slot.Repository, rr reservation.Repository, sink audit.Sink, opts ...ReservationOption) *ReservationService {
	s := &ReservationService{
		txManager:       txm,
		slotRepo:        sr,
		reservationRepo: rr,
		auditSink:       sink,
		clock:           SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateReservationInput struct {
	SlotID    int64
	UserID    int64
	PartySize int
}

// CreateReservation は枠をロックして検証し、booked の予約を作成する
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (_ *reservation.Detail, err error) {
	start := time.Now()
	defer func() { s.observe(operationCreate, start, false, err) }()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 集計より先に枠の行ロックを取得する
	sl, err := s.slotRepo.GetForUpdate(ctx, tx, input.SlotID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, tx, sl, input.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := reservation.ValidateBooking(snap, input.PartySize); err != nil {
		return nil, err
	}

	res := reservation.NewReservation(sl.ID, input.UserID, input.PartySize, s.clock.Now())
	if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, audit.ActionReservationCreated, res, sl, "", nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.invalidate(ctx, sl.ShopID)
	return &reservation.Detail{Reservation: res, Slot: sl}, nil
}

type CancelReservationInput struct {
	ReservationID int64
	UserID        int64
	Version       int
}

// CancelReservation は予約をキャンセルする
// キャンセル済みの予約はバージョンを確認せずそのまま返す
func (s *ReservationService) CancelReservation(ctx context.Context, input CancelReservationInput) (_ *reservation.Detail, err error) {
	start := time.Now()
	noop := false
	defer func() { s.observe(operationCancel, start, noop, err) }()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	res, sl, err := s.reservationRepo.GetForUserForUpdate(ctx, tx, input.ReservationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if res.IsCancelled() {
		noop = true
		return &reservation.Detail{Reservation: res, Slot: sl}, nil
	}
	if err := res.CheckVersion(input.Version); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if reservation.WithinCutoff(sl.StartsAt, now) {
		return nil, reservation.ErrCancelNotAllowed
	}

	from := res.Status
	if err := res.Cancel(now); err != nil {
		return nil, err
	}
	if err := s.reservationRepo.Cancel(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, audit.ActionReservationCancelled, res, sl, from, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.invalidate(ctx, sl.ShopID)
	return &reservation.Detail{Reservation: res, Slot: sl}, nil
}

type RescheduleReservationInput struct {
	ReservationID int64
	UserID        int64
	NewSlotID     int64
	Version       int
}

// RescheduleResult は日時変更後の予約と変更前の枠ID
type RescheduleResult struct {
	reservation.Detail
	PreviousSlotID int64
}

// RescheduleReservation は予約を同じ店舗の別の枠へ移す
// 現在と同じ枠を指定した場合は何も変更しない
func (s *ReservationService) RescheduleReservation(ctx context.Context, input RescheduleReservationInput) (_ *RescheduleResult, err error) {
	start := time.Now()
	noop := false
	defer func() { s.observe(operationReschedule, start, noop, err) }()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	res, current, err := s.reservationRepo.GetForUserForUpdate(ctx, tx, input.ReservationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !res.IsBooked() {
		return nil, reservation.ErrRescheduleNotAllowed
	}
	if err := res.CheckVersion(input.Version); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if reservation.WithinCutoff(current.StartsAt, now) {
		return nil, reservation.ErrRescheduleNotAllowed
	}
	if input.NewSlotID == res.SlotID {
		noop = true
		return &RescheduleResult{
			Detail:         reservation.Detail{Reservation: res, Slot: current},
			PreviousSlotID: current.ID,
		}, nil
	}

	target, err := s.lockSlotPair(ctx, tx, current.ID, input.NewSlotID)
	if err != nil {
		return nil, err
	}
	if !target.IsOpen() {
		return nil, slot.ErrSlotNotOpen
	}
	if target.ShopID != current.ShopID {
		return nil, reservation.ErrRescheduleNotAllowed
	}
	snap, err := s.snapshot(ctx, tx, target, input.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := reservation.ValidateBooking(snap, res.PartySize); err != nil {
		return nil, err
	}

	from := res.Status
	if err := res.MoveTo(target.ID, now); err != nil {
		return nil, err
	}
	if err := s.reservationRepo.Reschedule(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, audit.ActionReservationRescheduled, res, target, from, &current.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.invalidate(ctx, target.ShopID)
	return &RescheduleResult{
		Detail:         reservation.Detail{Reservation: res, Slot: target},
		PreviousSlotID: current.ID,
	}, nil
}

// ListUserReservations は利用者の予約一覧を返す。status が nil の場合は全状態
func (s *ReservationService) ListUserReservations(ctx context.Context, userID int64, status *reservation.Status) ([]reservation.Detail, error) {
	return s.reservationRepo.ListByUser(ctx, userID, status)
}

// GetUserReservation は利用者本人の予約を返す
func (s *ReservationService) GetUserReservation(ctx context.Context, reservationID, userID int64) (*reservation.Detail, error) {
	res, sl, err := s.reservationRepo.GetForUser(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	return &reservation.Detail{Reservation: res, Slot: sl}, nil
}

// snapshot はロック済みの枠について検証用の状態を組み立てる
// lockSlotPair は変更元と変更先の枠を ID の昇順で行ロックし、変更先の枠を返す
func (s *ReservationService) lockSlotPair(ctx context.Context, tx transaction.Tx, fromID, toID int64) (*slot.Slot, error) {
	first, second := fromID, toID
	if toID < fromID {
		first, second = toID, fromID
	}
	a, err := s.slotRepo.GetForUpdate(ctx, tx, first)
	if err != nil {
		return nil, err
	}
	b, err := s.slotRepo.GetForUpdate(ctx, tx, second)
	if err != nil {
		return nil, err
	}
	if first == toID {
		return a, nil
	}
	return b, nil
}

func (s *ReservationService) snapshot(ctx context.Context, tx transaction.Tx, sl *slot.Slot, userID int64) (reservation.SlotSnapshot, error) {
	reserved, err := s.reservationRepo.SumReserved(ctx, tx, sl.ID)
	if err != nil {
		return reservation.SlotSnapshot{}, fmt.Errorf("予約人数の集計に失敗: %w", err)
	}
	active, err := s.reservationRepo.UserHasActive(ctx, tx, sl.ID, userID)
	if err != nil {
		return reservation.SlotSnapshot{}, fmt.Errorf("重複予約の確認に失敗: %w", err)
	}
	return reservation.SlotSnapshot{
		Status:                   sl.Status,
		Capacity:                 sl.Capacity,
		Reserved:                 reserved,
		UserHasActiveReservation: active,
	}, nil
}

// emit はコミット前に監査ログを出力する。失敗した場合はトランザクションごと破棄される
func (s *ReservationService) emit(ctx context.Context, action audit.Action, res *reservation.Reservation, sl *slot.Slot, from reservation.Status, slotIDFrom *int64) error {
	if s.auditSink == nil {
		return nil
	}
	to := string(res.Status)
	rec := audit.Record{
		Timestamp:     s.clock.Now(),
		Action:        action,
		Initiator:     audit.InitiatorUser,
		ReservationID: &res.ID,
		SlotID:        &sl.ID,
		ShopID:        &sl.ShopID,
		UserID:        &res.UserID,
		PartySize:     &res.PartySize,
		StatusTo:      &to,
		Version:       &res.Version,
		SlotIDFrom:    slotIDFrom,
	}
	if from != "" {
		f := string(from)
		rec.StatusFrom = &f
	}
	if err := s.auditSink.Emit(ctx, rec); err != nil {
		logger.FromContext(ctx).Error("監査ログ出力に失敗", zap.String("action", string(action)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}
	return nil
}

// invalidate はコミット後に店舗の空き状況キャッシュを無効化する
func (s *ReservationService) invalidate(ctx context.Context, shopID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateShop(ctx, shopID); err != nil {
		logger.FromContext(ctx).Warn("キャッシュ無効化エラー", zap.Int64("shop_id", shopID), zap.Error(err))
	}
}

func (s *ReservationService) observe(operation string, start time.Time, noop bool, err error) {
	result := OperationResult(err)
	if err == nil && noop {
		result = "noop"
	}
	s.metrics.ObserveOperation(operation, result, time.Since(start).Seconds())
}

// OperationResult はエラーをメトリクスの result ラベルに変換する
func OperationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, reservation.ErrReservationNotFound), errors.Is(err, slot.ErrSlotNotFound):
		return "not_found"
	case errors.Is(err, slot.ErrSlotNotOpen):
		return "not_open"
	case errors.Is(err, reservation.ErrDuplicateReservation):
		return "duplicate"
	case errors.Is(err, reservation.ErrCapacity):
		return "capacity"
	case errors.Is(err, reservation.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, reservation.ErrCancelNotAllowed), errors.Is(err, reservation.ErrRescheduleNotAllowed):
		return "not_allowed"
	default:
		return "error"
	}
}
