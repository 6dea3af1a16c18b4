// Package rabbitmq は監査レコードを RabbitMQ のキューへ送信する
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/domain/audit"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/requestid"
)

// ErrNotConfirmed はブローカーがメッセージを受理しなかったことを表す
var ErrNotConfirmed = errors.New("ブローカーがメッセージを受理しませんでした")

// AuditMessage はキューへ送る監査レコードのJSON表現
type AuditMessage struct {
	Timestamp     time.Time `json:"timestamp"`
	Level         string    `json:"level"`
	Action        string    `json:"action"`
	Initiator     string    `json:"initiator"`
	RequestID     string    `json:"request_id,omitempty"`
	ReservationID *int64    `json:"reservation_id,omitempty"`
	SlotID        *int64    `json:"slot_id,omitempty"`
	ShopID        *int64    `json:"shop_id,omitempty"`
	UserID        *int64    `json:"user_id,omitempty"`
	PartySize     *int      `json:"party_size,omitempty"`
	StatusFrom    *string   `json:"status_from,omitempty"`
	StatusTo      *string   `json:"status_to,omitempty"`
	Version       *int      `json:"version,omitempty"`
	SlotIDFrom    *int64    `json:"slot_id_from,omitempty"`
}

// NewAuditMessage は監査レコードを送信用の形式に変換する
func NewAuditMessage(ctx context.Context, r audit.Record) AuditMessage {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return AuditMessage{
		Timestamp:     ts.UTC(),
		Level:         "info",
		Action:        string(r.Action),
		Initiator:     string(r.Initiator),
		RequestID:     requestid.FromContext(ctx),
		ReservationID: r.ReservationID,
		SlotID:        r.SlotID,
		ShopID:        r.ShopID,
		UserID:        r.UserID,
		PartySize:     r.PartySize,
		StatusFrom:    r.StatusFrom,
		StatusTo:      r.StatusTo,
		Version:       r.Version,
		SlotIDFrom:    r.SlotIDFrom,
	}
}

// AuditPublisher は監査レコードを永続キューへ送信する audit.Sink
// 送信はブローカーの受理確認（publisher confirm）まで待つ
type AuditPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ audit.Sink = (*AuditPublisher)(nil)

// NewAuditPublisher はブローカーへ接続し、キューを宣言する
func NewAuditPublisher(url, queue string) (*AuditPublisher, error) {
	p := &AuditPublisher{url: url, queue: queue}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect は接続とチャネルを開く。mu を保持して呼び出すこと
func (p *AuditPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm モード設定に失敗: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Emit は監査レコードを送信する。切断されていた場合は1度だけ再接続する
func (p *AuditPublisher) Emit(ctx context.Context, r audit.Record) error {
	body, err := json.Marshal(NewAuditMessage(ctx, r))
	if err != nil {
		return fmt.Errorf("監査レコードのエンコードに失敗: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		logger.Warn("RabbitMQ 再接続", zap.String("queue", p.queue))
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    requestid.FromContext(ctx),
		Type:         string(r.Action),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("監査レコードの送信に失敗: %w", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("送信確認の待機に失敗: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// Close は接続を閉じる
func (p *AuditPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AuditPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}
