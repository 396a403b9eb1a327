package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantCSP     string
		wantNoStore bool
		wantHSTS    bool
	}{
		{name: "正常系: API", url: "/api/v1/coupons/c1/redemption-token", wantCSP: apiCSP, wantNoStore: true},
		{name: "正常系: Swagger UI", url: "/swagger/index.html", wantCSP: swaggerCSP},
		{name: "正常系: OpenAPI仕様", url: "/openapi.yaml", wantCSP: swaggerCSP},
		{name: "正常系: HTTPS", url: "https://example.com/api/v1/redemptions/process", wantCSP: apiCSP, wantNoStore: true, wantHSTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := SecurityHeadersMiddleware()(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
			require.NoError(t, handler(c))

			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
			assert.Equal(t, tt.wantCSP, rec.Header().Get("Content-Security-Policy"))

			if tt.wantNoStore {
				assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			} else {
				assert.Empty(t, rec.Header().Get("Cache-Control"))
			}
			if tt.wantHSTS {
				assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
			} else {
				assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
			}
		})
	}
}
