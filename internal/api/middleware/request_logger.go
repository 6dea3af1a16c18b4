package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/requestid"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			err := next(c)
			if err != nil {
				// ステータスを確定させるためエラーハンドラーを先に呼ぶ
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("request_id", requestid.FromContext(c.Request().Context())),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			if userID, ok := UserID(c); ok {
				fields = append(fields, zap.Int64("user_id", userID))
			}

			switch {
			case res.Status >= 500:
				if err != nil {
					fields = append(fields, zap.Error(err))
				}
				logger.Error("server error", fields...)
			case res.Status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
			return nil
		}
	}
}

// RequestIDMiddleware はリクエストIDを引き継ぐか生成し、レスポンスヘッダーと context に設定する
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(requestid.HeaderName)
			if id == "" {
				id = requestid.Generate()
			}
			c.Response().Header().Set(requestid.HeaderName, id)
			c.SetRequest(req.WithContext(requestid.WithContext(req.Context(), id)))

			return next(c)
		}
	}
}
