package handler

import (
	"errors"
	"strings"
	"time"
)

// jstOffset は表示用タイムゾーン（日本標準時）のUTCオフセット
const jstOffset = 9 * 60 * 60

var jst = time.FixedZone("Asia/Tokyo", jstOffset)

var (
	errTimezoneRequired = errors.New("日時にはタイムゾーンが必要です")
	errJSTRequired      = errors.New("日時は +09:00 で指定してください")
)

// toJST はUTCの時刻を表示用に日本標準時へ変換する
func toJST(t time.Time) time.Time {
	return t.In(jst)
}

// parseInstant はタイムゾーン付きの RFC3339 文字列を解析してUTCで返す
// クエリ文字列で '+' が空白に変換された場合も受け付ける
func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil && strings.Contains(s, " ") {
		t, err = time.Parse(time.RFC3339, strings.Replace(s, " ", "+", 1))
	}
	if err != nil {
		return time.Time{}, errTimezoneRequired
	}
	return t.UTC(), nil
}

// parseJSTInstant は +09:00 のオフセットを持つ RFC3339 文字列だけを受け付ける
func parseJSTInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errTimezoneRequired
	}
	if _, offset := t.Zone(); offset != jstOffset {
		return time.Time{}, errJSTRequired
	}
	return t.UTC(), nil
}
