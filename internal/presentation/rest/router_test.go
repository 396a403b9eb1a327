package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	authapp "redemption-server/internal/application/auth"
	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/expiry"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/memory"
	"redemption-server/internal/infrastructure/replay"
	"redemption-server/internal/infrastructure/token"
)

const testAPIKey = "admin-key"

type routerFixture struct {
	router  *Router
	authn   *auth.Authenticator
	coupons *memory.CouponRepository
	healthy error
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(io.Discard)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		AdminAPI: config.AdminAPIConfig{Enabled: true, APIKey: testAPIKey},
	}

	keys, err := signing.NewKeyRing([]signing.Key{
		{Version: "v1", Secret: bytes.Repeat([]byte("r"), signing.MinSecretLength)},
	}, "v1")
	require.NoError(t, err)
	codec := token.NewCodec(keys, "redemption-server", 5*time.Second)

	coupons := memory.NewCouponRepository()
	staff := memory.NewStaffDirectory()
	staff.Add("merchant-a", "staff-a")
	authn := auth.NewAuthenticator("router-test-secret", "merchant-dashboard")

	f := &routerFixture{authn: authn, coupons: coupons}
	router, err := NewRouter(cfg, logger, metrics, Dependencies{
		Authenticator: authn,
		AuthService:   authapp.NewAuthApplicationService(authn, staff, time.Hour, logger),
		TokenService:  token_issuance.NewTokenIssuanceApplicationService(coupons, codec, time.Minute, token.NewNonce, logger, metrics),
		RedemptionService: coupon_redemption.NewRedemptionApplicationService(
			coupons, staff, memory.NewAuditRepository(), codec, replay.NewMemoryCache(), memory.NewTransactionManager(), logger, metrics,
		),
		Sweeper:     expiry.NewSweeper(coupons, time.Minute, 10, logger, metrics),
		Keys:        keys,
		HealthCheck: func(ctx context.Context) error { return f.healthy },
	})
	require.NoError(t, err)
	f.router = router

	require.NoError(t, coupons.Save(context.Background(), coupon.MustReconstruct(coupon.Attributes{
		ID:         "c1",
		OrderID:    "order-1",
		DealID:     "deal-1",
		MerchantID: "merchant-a",
		CustomerID: "customer-1",
		DealTitle:  "Two coffees",
		FaceValue:  decimal.RequireFromString("9.50"),
		Status:     coupon.CouponStatusActive,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		Version:    1,
	})))
	return f
}

func (f *routerFixture) bearer(t *testing.T, p auth.Principal) string {
	t.Helper()
	tok, err := f.authn.Issue(p, time.Now(), time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f *routerFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRouter_RedemptionFlow(t *testing.T) {
	f := newRouterFixture(t)
	customer := map[string]string{"Authorization": f.bearer(t, auth.Principal{UserID: "customer-1", Role: auth.RoleCustomer})}
	staff := map[string]string{"Authorization": f.bearer(t, auth.Principal{UserID: "staff-a", Role: auth.RoleStaff, MerchantID: "merchant-a"})}

	// 顧客がトークンを発行
	rec := f.do(t, http.MethodPost, "/api/v1/coupons/c1/redemption-token", "", customer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	body, err := json.Marshal(map[string]string{"token": issued.Token})
	require.NoError(t, err)

	// スタッフは顧客エンドポイントを使えない
	rec = f.do(t, http.MethodPost, "/api/v1/coupons/c1/redemption-token", "", staff)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 顧客はスタッフエンドポイントを使えない
	rec = f.do(t, http.MethodPost, "/api/v1/redemptions/process", string(body), customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/redemptions/validate", string(body), staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/redemptions/process", string(body), staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/redemptions/process", string(body), staff)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/redemptions/audit?coupon_id=c1", "", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		Records []struct {
			Outcome string `json:"outcome"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Records, 2)
	assert.Equal(t, "ALREADY_USED", audit.Records[0].Outcome)
	assert.Equal(t, "SUCCESS", audit.Records[1].Outcome)
}

func TestRouter_Authentication(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		headers        map[string]string
		expectedStatus int
	}{
		{name: "異常系: Authorizationなし", method: http.MethodPost, path: "/api/v1/redemptions/process", expectedStatus: http.StatusUnauthorized},
		{name: "異常系: 不正なBearer", method: http.MethodPost, path: "/api/v1/redemptions/process", headers: map[string]string{"Authorization": "Bearer nope"}, expectedStatus: http.StatusUnauthorized},
		{name: "異常系: 管理APIキーなし", method: http.MethodPost, path: "/admin/expiry/sweep", expectedStatus: http.StatusUnauthorized},
		{name: "正常系: 管理APIキー", method: http.MethodPost, path: "/admin/expiry/sweep", headers: map[string]string{"X-API-Key": testAPIKey}, expectedStatus: http.StatusOK},
		{name: "正常系: 鍵一覧", method: http.MethodGet, path: "/admin/keys", headers: map[string]string{"X-API-Key": testAPIKey}, expectedStatus: http.StatusOK},
		{name: "異常系: 鍵ファイル未設定", method: http.MethodPost, path: "/admin/keys/reload", headers: map[string]string{"X-API-Key": testAPIKey}, expectedStatus: http.StatusNotImplemented},
		{name: "異常系: 未定義のルート", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			rec := f.do(t, tt.method, tt.path, "", tt.headers)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_AdminIssueToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/users/staff-a/issue_token",
		`{"role":"staff","merchant_id":"merchant-a"}`, map[string]string{"X-API-Key": testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// 発行したトークンでスタッフAPIを呼べる
	rec = f.do(t, http.MethodGet, "/api/v1/redemptions/audit?coupon_id=c1", "", map[string]string{"Authorization": "Bearer " + resp.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.healthy = errors.New("db down")
	rec = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_OpenAPI(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/redemptions/process")
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestNewRouter_MissingDependencies(t *testing.T) {
	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test"))
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	_, err = NewRouter(&config.Config{}, logger, metrics, Dependencies{})
	assert.Error(t, err)
}
