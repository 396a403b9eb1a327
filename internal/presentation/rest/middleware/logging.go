package middleware

import (
	"strings"
	"time"

	"redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// LoggingMiddleware アクセスログミドルウェア
// ヘルスチェックは記録しない。トークン文字列は本文に含まれるためボディは出力しない
func LoggingMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/health" {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			ctx := c.Request().Context()
			fields := map[string]interface{}{
				"method":      c.Request().Method,
				"path":        c.Request().URL.Path,
				"route":       c.Path(),
				"status_code": c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": c.RealIP(),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}
			if p, ok := auth.PrincipalFrom(ctx); ok {
				fields["user_id"] = p.UserID
				fields["role"] = string(p.Role)
			}

			switch {
			case err != nil:
				logger.Error(ctx, "HTTP request failed", err, fields)
			case c.Response().Status >= 500:
				logger.Error(ctx, "HTTP request completed with server error", nil, fields)
			case strings.HasPrefix(c.Path(), "/admin"):
				logger.Warn(ctx, "Admin API request completed", fields)
			default:
				logger.Info(ctx, "HTTP request completed", fields)
			}

			return err
		}
	}
}
