// Package audit は監査ログの出力先（Sink）の実装を提供する
package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	domainaudit "github.com/kai-5908/reservation-system-tutorial/internal/domain/audit"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/requestid"
)

// ZapSink は監査レコードを1行のJSONとして出力する
// zapcore.Core に直接書き込み、書き込みエラーを呼び出し側へ返す
type ZapSink struct {
	core zapcore.Core
}

var _ domainaudit.Sink = (*ZapSink)(nil)

// NewZapSink は指定した Core に書き込む ZapSink を作成する
func NewZapSink(core zapcore.Core) *ZapSink {
	return &ZapSink{core: core}
}

// NewStdoutZapSink は標準出力へ JSON を書き込む ZapSink を作成する
func NewStdoutZapSink() *ZapSink {
	return NewZapSink(NewJSONCore(zapcore.Lock(os.Stdout)))
}

// NewJSONCore は監査ログ用の JSON エンコーダを持つ Core を作成する
func NewJSONCore(w zapcore.WriteSyncer) zapcore.Core {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zap.InfoLevel)
}

// Emit は監査レコードを出力する
func (s *ZapSink) Emit(ctx context.Context, r domainaudit.Record) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       ts.UTC(),
		LoggerName: "audit",
	}
	if !s.core.Enabled(entry.Level) {
		return nil
	}
	if err := s.core.Write(entry, Fields(ctx, r)); err != nil {
		return fmt.Errorf("監査ログの書き込みに失敗: %w", err)
	}
	return nil
}

// Fields は監査レコードを zap フィールドに変換する。nil の項目は含めない
func Fields(ctx context.Context, r domainaudit.Record) []zap.Field {
	fields := []zap.Field{
		zap.String("action", string(r.Action)),
		zap.String("initiator", string(r.Initiator)),
	}
	if id := requestid.FromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if r.ReservationID != nil {
		fields = append(fields, zap.Int64("reservation_id", *r.ReservationID))
	}
	if r.SlotID != nil {
		fields = append(fields, zap.Int64("slot_id", *r.SlotID))
	}
	if r.ShopID != nil {
		fields = append(fields, zap.Int64("shop_id", *r.ShopID))
	}
	if r.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *r.UserID))
	}
	if r.PartySize != nil {
		fields = append(fields, zap.Int("party_size", *r.PartySize))
	}
	if r.StatusFrom != nil {
		fields = append(fields, zap.String("status_from", *r.StatusFrom))
	}
	if r.StatusTo != nil {
		fields = append(fields, zap.String("status_to", *r.StatusTo))
	}
	if r.Version != nil {
		fields = append(fields, zap.Int("version", *r.Version))
	}
	if r.SlotIDFrom != nil {
		fields = append(fields, zap.Int64("slot_id_from", *r.SlotIDFrom))
	}
	return fields
}

type namedSink struct {
	name string
	sink domainaudit.Sink
}

// MultiSink は登録順に複数の Sink へ出力する
// いずれかが失敗した時点でエラーを返す
type MultiSink struct {
	sinks   []namedSink
	metrics *metrics.Metrics
}

var _ domainaudit.Sink = (*MultiSink)(nil)

// NewMultiSink は空の MultiSink を作成する。m は nil でもよい
func NewMultiSink(m *metrics.Metrics) *MultiSink {
	return &MultiSink{metrics: m}
}

// Add は出力先を追加する。name はメトリクスのラベルに使われる
func (s *MultiSink) Add(name string, sink domainaudit.Sink) *MultiSink {
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
	return s
}

// Len は登録済みの出力先の数を返す
func (s *MultiSink) Len() int {
	return len(s.sinks)
}

// Emit は全ての出力先へ監査レコードを出力する
func (s *MultiSink) Emit(ctx context.Context, r domainaudit.Record) error {
	for _, ns := range s.sinks {
		if err := ns.sink.Emit(ctx, r); err != nil {
			s.metrics.ObserveAuditFailure(ns.name)
			return fmt.Errorf("監査ログ出力に失敗 (%s): %w", ns.name, err)
		}
	}
	return nil
}
