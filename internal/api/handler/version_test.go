package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name    string
		ifMatch string
		body    *int
		want    int
		wantErr error
	}{
		{name: "引用符付きの If-Match", ifMatch: `"3"`, want: 3},
		{name: "弱いタグの If-Match", ifMatch: `W/"2"`, want: 2},
		{name: "引用符なしの If-Match", ifMatch: "5", want: 5},
		{name: "前後の空白は無視する", ifMatch: `  W/ "4" `, want: 4},
		{name: "If-Match をボディより優先する", ifMatch: `"7"`, body: intPtr(1), want: 7},
		{name: "If-Match がなければボディを使う", body: intPtr(2), want: 2},
		{name: "整数でない If-Match", ifMatch: `"abc"`, wantErr: errInvalidIfMatch},
		{name: "If-Match が0", ifMatch: `"0"`, wantErr: errVersionTooSmall},
		{name: "ボディが0", body: intPtr(0), wantErr: errVersionTooSmall},
		{name: "ボディが負数", body: intPtr(-1), wantErr: errVersionTooSmall},
		{name: "どちらもない", wantErr: errVersionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractVersion(tt.ifMatch, tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEtag(t *testing.T) {
	assert.Equal(t, `W/"3"`, etag(3))

	v, err := extractVersion(etag(12), nil)
	require.NoError(t, err)
	assert.Equal(t, 12, v)
}

func TestParseInstant(t *testing.T) {
	t.Run("オフセット付きはUTCに変換する", func(t *testing.T) {
		got, err := parseInstant("2030-06-10T18:00:00+09:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC), got)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("Z は UTC として受け付ける", func(t *testing.T) {
		got, err := parseInstant("2030-06-10T09:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("クエリで + が空白になった場合も受け付ける", func(t *testing.T) {
		got, err := parseInstant("2030-06-10T18:00:00 09:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("タイムゾーンなしは拒否する", func(t *testing.T) {
		_, err := parseInstant("2030-06-10T18:00:00")
		assert.ErrorIs(t, err, errTimezoneRequired)
	})

	t.Run("空文字は拒否する", func(t *testing.T) {
		_, err := parseInstant("")
		assert.ErrorIs(t, err, errTimezoneRequired)
	})
}

func TestParseJSTInstant(t *testing.T) {
	t.Run("+09:00 を受け付ける", func(t *testing.T) {
		got, err := parseJSTInstant("2030-06-10T18:00:00+09:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("他のオフセットは拒否する", func(t *testing.T) {
		_, err := parseJSTInstant("2030-06-10T09:00:00Z")
		assert.ErrorIs(t, err, errJSTRequired)
	})

	t.Run("タイムゾーンなしは拒否する", func(t *testing.T) {
		_, err := parseJSTInstant("2030-06-10T18:00:00")
		assert.ErrorIs(t, err, errTimezoneRequired)
	})
}
