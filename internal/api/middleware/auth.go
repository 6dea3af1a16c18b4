package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/kai-5908/reservation-system-tutorial/internal/config"
)

// userIDKey は認証済み利用者IDを echo.Context に格納するキー
const userIDKey = "user_id"

var errInvalidSubject = errors.New("sub が正の整数ではありません")

// JWTAuth は Bearer トークンを検証し、sub の利用者IDを echo.Context に設定する
// 秘密鍵が未設定の場合は全てのリクエストを 500 にする
func JWTAuth(cfg config.AuthConfig) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{cfg.Algorithm}))
	key := []byte(cfg.Secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Secret == "" {
				return echo.NewHTTPError(http.StatusInternalServerError, "auth secret is not configured")
			}

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return unauthorized(c, "missing bearer token")
			}

			claims := jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			}); err != nil {
				return unauthorized(c, "invalid token")
			}
			userID, err := parseSubject(claims.Subject)
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// UserID は JWTAuth が設定した利用者IDを返す
func UserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(userIDKey).(int64)
	return id, ok
}

// SetUserID は利用者IDを設定する（ハンドラーのテスト用）
func SetUserID(c echo.Context, userID int64) {
	c.Set(userIDKey, userID)
}

func parseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidSubject
	}
	return id, nil
}

func unauthorized(c echo.Context, message string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, message)
}
