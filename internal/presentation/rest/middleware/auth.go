package middleware

import (
	"errors"
	"net/http"

	"redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware Bearerトークン認証ミドルウェア
// 検証した主体をechoのコンテキストとリクエストのcontextに設定する
func AuthMiddleware(authenticator *auth.Authenticator, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			p, err := authenticator.ParseHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				var message string
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					message = "Missing authorization header"
				case errors.Is(err, auth.ErrInvalidHeader):
					message = "Invalid authorization header format"
				case errors.Is(err, auth.ErrInvalidClaims):
					message = "Invalid token claims"
				default:
					message = "Invalid or expired token"
				}
				logger.Warn(ctx, message, map[string]interface{}{
					"error": err.Error(),
				})
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: message,
				})
			}

			// 主体をリクエストコンテキストに設定
			c.Set("user_id", p.UserID)
			c.Set("principal", p)
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(ctx, p)))

			return next(c)
		}
	}
}

// RequireRole 指定ロール以外の主体を拒否するミドルウェア
func RequireRole(role auth.Role, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := auth.PrincipalFrom(c.Request().Context())
			if !ok || p.Role != role {
				logger.Warn(c.Request().Context(), "Role not allowed", map[string]interface{}{
					"required": string(role),
					"user_id":  p.UserID,
					"role":     string(p.Role),
				})
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "forbidden",
					Message: "This operation requires role " + string(role),
				})
			}
			return next(c)
		}
	}
}
