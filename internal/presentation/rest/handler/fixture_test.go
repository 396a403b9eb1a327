package handler

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	authapp "redemption-server/internal/application/auth"
	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/expiry"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/memory"
	"redemption-server/internal/infrastructure/replay"
	"redemption-server/internal/infrastructure/token"
	restmiddleware "redemption-server/internal/presentation/rest/middleware"
)

const (
	testMerchant = "merchant-a"
	testStaff    = "staff-a"
	testCustomer = "customer-1"
)

type handlerFixture struct {
	coupons *memory.CouponRepository
	audit   *memory.AuditRepository
	staff   *memory.StaffDirectory
	keys    *signing.KeyRing
	logger  *otelinfra.Logger

	tokens      *TokenHandler
	redemptions *RedemptionHandler
	auth        *AuthHandler
	authn       *auth.Authenticator
	sweeper     *expiry.Sweeper
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(io.Discard)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	keys, err := signing.NewKeyRing([]signing.Key{
		{Version: "v1", Secret: bytes.Repeat([]byte("k"), signing.MinSecretLength)},
	}, "v1")
	require.NoError(t, err)
	codec := token.NewCodec(keys, "redemption-server", 5*time.Second)

	coupons := memory.NewCouponRepository()
	audit := memory.NewAuditRepository()
	staff := memory.NewStaffDirectory()
	staff.Add(testMerchant, testStaff)
	staff.Add("merchant-b", "staff-b")

	authn := auth.NewAuthenticator("test-secret-key", "merchant-dashboard")

	f := &handlerFixture{
		coupons: coupons,
		audit:   audit,
		staff:   staff,
		keys:    keys,
		logger:  logger,
		authn:   authn,
		sweeper: expiry.NewSweeper(coupons, time.Minute, 10, logger, metrics),
	}
	f.tokens = NewTokenHandler(token_issuance.NewTokenIssuanceApplicationService(
		coupons, codec, time.Minute, token.NewNonce, logger, metrics,
	))
	f.redemptions = NewRedemptionHandler(coupon_redemption.NewRedemptionApplicationService(
		coupons, staff, audit, codec, replay.NewMemoryCache(), memory.NewTransactionManager(), logger, metrics,
	))
	f.auth = NewAuthHandler(authapp.NewAuthApplicationService(authn, staff, time.Hour, logger))
	return f
}

func (f *handlerFixture) addCoupon(t *testing.T, id, merchantID string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.coupons.Save(context.Background(), coupon.MustReconstruct(coupon.Attributes{
		ID:         id,
		OrderID:    "order-" + id,
		DealID:     "deal-1",
		MerchantID: merchantID,
		CustomerID: testCustomer,
		DealTitle:  "Two coffees",
		FaceValue:  decimal.RequireFromString("9.5"),
		Status:     coupon.CouponStatusActive,
		ExpiresAt:  expiresAt,
		Version:    1,
	})))
}

// serve 主体をコンテキストに設定し、エラーハンドリングミドルウェア経由でハンドラーを実行する
func (f *handlerFixture) serve(
	t *testing.T,
	h echo.HandlerFunc,
	method, target, body string,
	principal *auth.Principal,
	params map[string]string,
) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if principal != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *principal))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for name, value := range params {
			names = append(names, name)
			values = append(values, value)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}

	err := restmiddleware.ErrorHandlerMiddleware(f.logger)(h)(c)
	require.NoError(t, err)
	return rec
}

func customerPrincipal() *auth.Principal {
	return &auth.Principal{UserID: testCustomer, Role: auth.RoleCustomer}
}

func staffPrincipal() *auth.Principal {
	return &auth.Principal{UserID: testStaff, Role: auth.RoleStaff, MerchantID: testMerchant}
}

