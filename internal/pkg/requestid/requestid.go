// Package requestid はリクエスト相関IDを context.Context で受け渡す
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// HeaderName はリクエストIDを運ぶHTTPヘッダー
const HeaderName = "X-Request-ID"

type contextKey struct{}

// Generate は新しいリクエストID（ハイフンなしの UUID v4）を生成する
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithContext はリクエストIDを持つ context を返す
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext は context からリクエストIDを取得する。未設定の場合は空文字
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
