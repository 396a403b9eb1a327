package middleware

import (
	"net/http"

	"redemption-server/internal/infrastructure/auth"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware OpenTelemetryトレーシングミドルウェア
func TracingMiddleware() echo.MiddlewareFunc {
	tracer := otel.Tracer("redemption-server/rest")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// トレースコンテキストの伝播
			ctx := otel.GetTextMapPropagator().Extract(c.Request().Context(), propagation.HeaderCarrier(c.Request().Header))

			ctx, span := tracer.Start(ctx, c.Request().Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", c.Request().Method),
					attribute.String("http.route", c.Path()),
					attribute.String("http.user_agent", c.Request().UserAgent()),
				),
			)
			defer span.End()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.status_code", status))

			// 認証ミドルウェアが設定した主体を記録
			if p, ok := auth.PrincipalFrom(c.Request().Context()); ok {
				span.SetAttributes(
					attribute.String("enduser.id", p.UserID),
					attribute.String("enduser.role", string(p.Role)),
				)
				if p.MerchantID != "" {
					span.SetAttributes(attribute.String("merchant_id", p.MerchantID))
				}
			}

			if err != nil {
				span.RecordError(err)
				span.SetStatus(otelcodes.Error, err.Error())
			} else if status >= 500 {
				span.SetStatus(otelcodes.Error, http.StatusText(status))
			}

			return err
		}
	}
}
