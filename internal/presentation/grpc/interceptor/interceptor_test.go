package interceptor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
)

func newTestLogger() *otelinfra.Logger {
	return otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test"))
}

func TestAuthInterceptor(t *testing.T) {
	authn := auth.NewAuthenticator("test-secret", "merchant-dashboard")
	staffToken, err := authn.Issue(auth.Principal{UserID: "staff-1", Role: auth.RoleStaff, MerchantID: "m1"}, time.Now(), time.Hour)
	require.NoError(t, err)
	expiredToken, err := authn.Issue(auth.Principal{UserID: "staff-1", Role: auth.RoleStaff, MerchantID: "m1"}, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name          string
		md            metadata.MD
		expectedCode  codes.Code
		expectedError string
	}{
		{
			name:         "正常系: 有効なトークン",
			md:           metadata.Pairs("authorization", "Bearer "+staffToken),
			expectedCode: codes.OK,
		},
		{
			name:          "異常系: メタデータなし",
			expectedCode:  codes.Unauthenticated,
			expectedError: "missing metadata",
		},
		{
			name:          "異常系: Authorizationなし",
			md:            metadata.MD{},
			expectedCode:  codes.Unauthenticated,
			expectedError: "missing authorization header",
		},
		{
			name:          "異常系: Bearer形式でない",
			md:            metadata.Pairs("authorization", "Basic abc"),
			expectedCode:  codes.Unauthenticated,
			expectedError: "invalid authorization header format",
		},
		{
			name:          "異常系: 期限切れトークン",
			md:            metadata.Pairs("authorization", "Bearer "+expiredToken),
			expectedCode:  codes.Unauthenticated,
			expectedError: "invalid or expired token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}

			var got auth.Principal
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				p, ok := auth.PrincipalFrom(ctx)
				require.True(t, ok)
				got = p
				return "ok", nil
			}

			info := &grpc.UnaryServerInfo{FullMethod: "/coupon.redemption.v1.RedemptionService/Process"}
			resp, err := AuthInterceptor(authn, newTestLogger())(ctx, nil, info, handler)
			if tt.expectedCode == codes.OK {
				require.NoError(t, err)
				assert.Equal(t, "ok", resp)
				assert.Equal(t, "staff-1", got.UserID)
				assert.Equal(t, "m1", got.MerchantID)
				return
			}
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, st.Code())
			assert.Contains(t, st.Message(), tt.expectedError)
		})
	}
}

func TestForService(t *testing.T) {
	reject := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return nil, status.Error(codes.PermissionDenied, "rejected")
	}
	ic := ForService("coupon.redemption.v1.AdminService", reject)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	resp, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coupon.redemption.v1.RedemptionService/Process"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coupon.redemption.v1.AdminService/SweepExpired"}, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// 前方一致で別サービスに適用しない
	resp, err = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coupon.redemption.v1.AdminServiceV2/SweepExpired"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestAPIKeyInterceptor(t *testing.T) {
	tests := []struct {
		name          string
		md            metadata.MD
		peerAddr      net.Addr
		config        *config.AdminAPIConfig
		expectedCode  codes.Code
		expectedError string
	}{
		{
			name:         "正常系: 有効なAPIキー",
			md:           metadata.Pairs("x-api-key", "test-api-key"),
			config:       &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			expectedCode: codes.OK,
		},
		{
			name:          "異常系: APIキーが空",
			md:            metadata.MD{},
			config:        &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			expectedCode:  codes.Unauthenticated,
			expectedError: "missing X-API-Key metadata",
		},
		{
			name:          "異常系: 無効なAPIキー",
			md:            metadata.Pairs("x-api-key", "invalid-key"),
			config:        &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key"},
			expectedCode:  codes.Unauthenticated,
			expectedError: "invalid API key",
		},
		{
			name:          "異常系: 管理APIが無効化されている",
			md:            metadata.Pairs("x-api-key", "test-api-key"),
			config:        &config.AdminAPIConfig{Enabled: false, APIKey: "test-api-key"},
			expectedCode:  codes.PermissionDenied,
			expectedError: "admin API is disabled",
		},
		{
			name:         "正常系: 許可されたCIDR（X-Forwarded-For）",
			md:           metadata.Pairs("x-api-key", "test-api-key", "x-forwarded-for", "10.1.2.3, 172.16.0.1"),
			config:       &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key", AllowedIPs: []string{"10.0.0.0/8"}},
			expectedCode: codes.OK,
		},
		{
			name:         "正常系: 接続元アドレスで判定",
			md:           metadata.Pairs("x-api-key", "test-api-key"),
			peerAddr:     &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 50000},
			config:       &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key", AllowedIPs: []string{"127.0.0.1"}},
			expectedCode: codes.OK,
		},
		{
			name:          "異常系: 許可されていないIP",
			md:            metadata.Pairs("x-api-key", "test-api-key", "x-real-ip", "192.168.1.1"),
			config:        &config.AdminAPIConfig{Enabled: true, APIKey: "test-api-key", AllowedIPs: []string{"10.0.0.0/8"}},
			expectedCode:  codes.PermissionDenied,
			expectedError: "IP address not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), tt.md)
			if tt.peerAddr != nil {
				ctx = peer.NewContext(ctx, &peer.Peer{Addr: tt.peerAddr})
			}
			info := &grpc.UnaryServerInfo{FullMethod: "/coupon.redemption.v1.AdminService/SweepExpired"}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return "success", nil
			}

			resp, err := APIKeyInterceptor(tt.config, newTestLogger())(ctx, nil, info, handler)
			if tt.expectedCode == codes.OK {
				require.NoError(t, err)
				assert.Equal(t, "success", resp)
				return
			}
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, st.Code())
			assert.Contains(t, st.Message(), tt.expectedError)
		})
	}
}
