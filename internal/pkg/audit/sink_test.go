package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domainaudit "github.com/kai-5908/reservation-system-tutorial/internal/domain/audit"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/requestid"
)

func ptr[T any](v T) *T { return &v }

func testRecord() domainaudit.Record {
	return domainaudit.Record{
		Timestamp:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Action:        domainaudit.ActionReservationCreated,
		Initiator:     domainaudit.InitiatorUser,
		ReservationID: ptr(int64(1)),
		SlotID:        ptr(int64(10)),
		ShopID:        ptr(int64(100)),
		UserID:        ptr(int64(7)),
		PartySize:     ptr(2),
		StatusTo:      ptr("booked"),
		Version:       ptr(1),
	}
}

func TestZapSink_Emit_WritesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(core)
	ctx := requestid.WithContext(context.Background(), "req-1")

	require.NoError(t, sink.Emit(ctx, testRecord()))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "reservation.created", fields["action"])
	assert.Equal(t, "user", fields["initiator"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(10), fields["slot_id"])
	assert.Equal(t, "booked", fields["status_to"])
	assert.NotContains(t, fields, "status_from")
	assert.NotContains(t, fields, "slot_id_from")
}

func TestZapSink_Emit_JSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZapSink(NewJSONCore(zapcore.AddSync(&buf)))

	require.NoError(t, sink.Emit(context.Background(), testRecord()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "reservation.created", got["action"])
	assert.Contains(t, got["timestamp"], "2030-01-01")
	assert.NotContains(t, got, "request_id")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestZapSink_Emit_WriteError(t *testing.T) {
	sink := NewZapSink(NewJSONCore(zapcore.AddSync(failingWriter{})))

	err := sink.Emit(context.Background(), testRecord())
	assert.Error(t, err)
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Emit(context.Context, domainaudit.Record) error {
	s.calls++
	return s.err
}

func TestMultiSink_Emit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	t.Run("全ての出力先へ出力", func(t *testing.T) {
		a, b := &stubSink{}, &stubSink{}
		sink := NewMultiSink(m).Add("log", a).Add("amqp", b)

		require.NoError(t, sink.Emit(context.Background(), testRecord()))
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, 1, b.calls)
		assert.Equal(t, 2, sink.Len())
	})

	t.Run("失敗した時点で中断", func(t *testing.T) {
		a, b := &stubSink{err: errors.New("boom")}, &stubSink{}
		sink := NewMultiSink(m).Add("log", a).Add("amqp", b)

		err := sink.Emit(context.Background(), testRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log")
		assert.Equal(t, 0, b.calls)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditEmitFailures.WithLabelValues("log")))
	})
}
