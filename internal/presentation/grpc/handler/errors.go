package handler

import (
	"context"
	"errors"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/infrastructure/auth"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handleError ドメインエラーをgRPCステータスに変換
func handleError(err error) error {
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, coupon.ErrNotEligible):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, coupon.ErrStaffNotInMerchant), errors.Is(err, coupon.ErrWrongMerchant):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// requireRole contextの主体が指定ロールであることを確認
func requireRole(ctx context.Context, role auth.Role) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return auth.Principal{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	if p.Role != role {
		return auth.Principal{}, status.Errorf(codes.PermissionDenied, "this operation requires role %s", role)
	}
	return p, nil
}
