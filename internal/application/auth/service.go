package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redemption-server/internal/domain/coupon"
	authinfra "redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidRole 未対応のロールエラー
var ErrInvalidRole = errors.New("role must be customer or staff")

// AuthApplicationService 認証アプリケーションサービス
type AuthApplicationService struct {
	authenticator *authinfra.Authenticator
	staffDir      coupon.StaffDirectory
	expiration    time.Duration
	logger        *otelinfra.Logger
}

// NewAuthApplicationService 新しいAuthApplicationServiceを作成
func NewAuthApplicationService(
	authenticator *authinfra.Authenticator,
	staffDir coupon.StaffDirectory,
	expiration time.Duration,
	logger *otelinfra.Logger,
) *AuthApplicationService {
	return &AuthApplicationService{
		authenticator: authenticator,
		staffDir:      staffDir,
		expiration:    expiration,
		logger:        logger,
	}
}

// GenerateToken Bearerトークンを生成
// スタッフの場合は加盟店への所属を確認してから発行する
func (s *AuthApplicationService) GenerateToken(ctx context.Context, req *GenerateTokenRequest) (*GenerateTokenResponse, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "AuthApplicationService.GenerateToken")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("role", req.Role),
	)

	// ユーザーIDのバリデーション
	if req.UserID == "" {
		err := fmt.Errorf("user_id is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "User ID is required", err, nil)
		return nil, err
	}

	p := authinfra.Principal{UserID: req.UserID, Role: authinfra.Role(req.Role), MerchantID: req.MerchantID}
	switch p.Role {
	case authinfra.RoleCustomer:
		p.MerchantID = ""
	case authinfra.RoleStaff:
		ok, err := s.staffDir.IsStaffOf(ctx, req.UserID, req.MerchantID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to check staff membership: %w", err)
		}
		if !ok {
			err := coupon.ErrStaffNotInMerchant
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	default:
		span.RecordError(ErrInvalidRole)
		span.SetStatus(codes.Error, ErrInvalidRole.Error())
		return nil, ErrInvalidRole
	}

	now := time.Now()
	tokenString, err := s.authenticator.Issue(p, now, s.expiration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "Failed to generate token", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info(ctx, "Token generated successfully", map[string]interface{}{
		"user_id":    req.UserID,
		"role":       req.Role,
		"expires_at": now.Add(s.expiration).Unix(),
	})

	return &GenerateTokenResponse{
		Token:     tokenString,
		ExpiresIn: int64(s.expiration.Seconds()),
		TokenType: "Bearer",
	}, nil
}
