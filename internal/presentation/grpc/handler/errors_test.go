package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/infrastructure/auth"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "クーポンが見つからない", err: coupon.ErrCouponNotFound, want: codes.NotFound},
		{name: "発行対象外", err: coupon.ErrNotEligible, want: codes.FailedPrecondition},
		{name: "加盟店に所属していない", err: coupon.ErrStaffNotInMerchant, want: codes.PermissionDenied},
		{name: "別の加盟店", err: fmt.Errorf("wrap: %w", coupon.ErrWrongMerchant), want: codes.PermissionDenied},
		{name: "タイムアウト", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "予期しないエラー", err: errors.New("db down"), want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handleError(tt.err)
			assert.Equal(t, tt.want, status.Code(err))
			if tt.want == codes.Internal {
				assert.NotContains(t, err.Error(), "db down")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	_, err := requireRole(context.Background(), auth.RoleStaff)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UserID: "c1", Role: auth.RoleCustomer})
	_, err = requireRole(ctx, auth.RoleStaff)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	p, err := requireRole(ctx, auth.RoleCustomer)
	assert.NoError(t, err)
	assert.Equal(t, "c1", p.UserID)
}
