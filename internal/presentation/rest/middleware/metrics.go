package middleware

import (
	"time"

	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware メトリクス記録ミドルウェア
// 拒否結果はハンドラーがJSONで返すため、エラーの有無ではなくステータスコードで分類する
func MetricsMiddleware(metrics *otelinfra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			route := c.Path()

			metrics.RecordRequest(ctx, c.Request().Method, route)

			err := next(c)

			metrics.RecordResponseTime(ctx, c.Request().Method, route, time.Since(start).Seconds())

			if errorType := errorTypeOf(c.Response().Status, err); errorType != "" {
				metrics.RecordError(ctx, errorType)
			}

			return err
		}
	}
}

// errorTypeOf ステータスコードからエラー種別を返す（エラーでない場合は空文字）
func errorTypeOf(status int, err error) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	case err != nil:
		return "server_error"
	default:
		return ""
	}
}
