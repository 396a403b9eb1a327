package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"redemption-server/internal/domain/coupon"
	authinfra "redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/memory"
)

func TestAuthApplicationService_GenerateToken(t *testing.T) {
	authenticator := authinfra.NewAuthenticator("test-secret-key", "test-issuer")

	staff := memory.NewStaffDirectory()
	staff.Add("merchant-1", "staff-1")

	tests := []struct {
		name      string
		req       *GenerateTokenRequest
		wantError error
		checkFunc func(*testing.T, *GenerateTokenResponse)
	}{
		{
			name: "正常系: 顧客トークンを生成",
			req: &GenerateTokenRequest{
				UserID:     "customer-1",
				Role:       "customer",
				MerchantID: "ignored",
			},
			checkFunc: func(t *testing.T, resp *GenerateTokenResponse) {
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, int64(86400), resp.ExpiresIn) // 24時間 = 86400秒
				assert.Equal(t, "Bearer", resp.TokenType)

				p, err := authenticator.Parse(resp.Token)
				require.NoError(t, err)
				assert.Equal(t, authinfra.RoleCustomer, p.Role)
				assert.Empty(t, p.MerchantID)
			},
		},
		{
			name: "正常系: スタッフトークンを生成",
			req: &GenerateTokenRequest{
				UserID:     "staff-1",
				Role:       "staff",
				MerchantID: "merchant-1",
			},
			checkFunc: func(t *testing.T, resp *GenerateTokenResponse) {
				p, err := authenticator.Parse(resp.Token)
				require.NoError(t, err)
				assert.True(t, p.IsStaff())
				assert.Equal(t, "merchant-1", p.MerchantID)
			},
		},
		{
			name:      "異常系: ユーザーIDが空",
			req:       &GenerateTokenRequest{UserID: "", Role: "customer"},
			wantError: nil,
		},
		{
			name:      "異常系: 所属していない加盟店",
			req:       &GenerateTokenRequest{UserID: "staff-1", Role: "staff", MerchantID: "merchant-2"},
			wantError: coupon.ErrStaffNotInMerchant,
		},
		{
			name:      "異常系: 不明なロール",
			req:       &GenerateTokenRequest{UserID: "admin", Role: "admin"},
			wantError: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer := otel.Tracer("test")
			logger := otelinfra.NewLogger(tracer)

			svc := NewAuthApplicationService(authenticator, staff, 24*time.Hour, logger)

			got, err := svc.GenerateToken(context.Background(), tt.req)

			if tt.checkFunc == nil {
				assert.Error(t, err)
				assert.Nil(t, got)
				if tt.wantError != nil {
					assert.ErrorIs(t, err, tt.wantError)
				}
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, got)
		})
	}
}
