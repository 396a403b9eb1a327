package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"redemption-server/internal/domain/coupon"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// domainError ドメインエラーとHTTPレスポンスの対応
type domainError struct {
	err    error
	status int
	code   string
	log    string
}

var domainErrors = []domainError{
	{err: coupon.ErrCouponNotFound, status: http.StatusNotFound, code: "coupon_not_found", log: "Coupon not found"},
	{err: coupon.ErrNotEligible, status: http.StatusForbidden, code: "not_eligible", log: "Coupon not eligible"},
	{err: coupon.ErrStaffNotInMerchant, status: http.StatusForbidden, code: "staff_not_in_merchant", log: "Staff not in merchant"},
	{err: coupon.ErrWrongMerchant, status: http.StatusForbidden, code: "wrong_merchant", log: "Coupon belongs to another merchant"},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// エラーハンドリング
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// ドメインエラーの判定と処理
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			logger.Warn(ctx, de.log, map[string]interface{}{
				"error": err.Error(),
			})
			return c.JSON(de.status, ErrorResponse{
				Error:   de.code,
				Message: err.Error(),
			})
		}
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
