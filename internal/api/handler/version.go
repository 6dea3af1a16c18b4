package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errVersionRequired = errors.New("version is required")
	errVersionTooSmall = errors.New("version must be >= 1")
	errInvalidIfMatch  = errors.New("invalid If-Match header")
)

const (
	// headerIfMatch は期待する予約バージョンを運ぶ条件付きヘッダー
	headerIfMatch = "If-Match"
	headerETag    = "ETag"
)

// extractVersion は期待するバージョンを取り出す
// If-Match（"3" や W/"3"）をボディの version より優先する
func extractVersion(ifMatch string, body *int) (int, error) {
	if token := strings.TrimSpace(ifMatch); token != "" {
		if rest, ok := strings.CutPrefix(token, "W/"); ok {
			token = strings.TrimSpace(rest)
		}
		token = strings.Trim(token, `"`)
		v, err := strconv.Atoi(token)
		if err != nil {
			return 0, errInvalidIfMatch
		}
		if v < 1 {
			return 0, errVersionTooSmall
		}
		return v, nil
	}
	if body != nil {
		if *body < 1 {
			return 0, errVersionTooSmall
		}
		return *body, nil
	}
	return 0, errVersionRequired
}

// etag は予約バージョンの弱いエンティティタグを返す
func etag(version int) string {
	return fmt.Sprintf(`W/"%d"`, version)
}
