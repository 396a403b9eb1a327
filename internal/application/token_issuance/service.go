package token_issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/redemption"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
)

// TokenIssuanceApplicationService 引き換えトークン発行アプリケーションサービス
// クーポンの状態は変更しない。有効期限内の再発行は独立したトークンを返す
type TokenIssuanceApplicationService struct {
	couponRepo coupon.CouponRepository
	signer     redemption.TokenSigner
	ttl        time.Duration
	newNonce   func() (string, error)
	now        func() time.Time
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// Option サービスのオプション
type Option func(*TokenIssuanceApplicationService)

// WithClock 現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *TokenIssuanceApplicationService) {
		s.now = now
	}
}

// NewTokenIssuanceApplicationService 新しいTokenIssuanceApplicationServiceを作成
func NewTokenIssuanceApplicationService(
	couponRepo coupon.CouponRepository,
	signer redemption.TokenSigner,
	ttl time.Duration,
	newNonce func() (string, error),
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	opts ...Option,
) *TokenIssuanceApplicationService {
	s := &TokenIssuanceApplicationService{
		couponRepo: couponRepo,
		signer:     signer,
		ttl:        ttl,
		newNonce:   newNonce,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("token-issuance-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue 顧客が所有するクーポンの引き換えトークンを発行
func (s *TokenIssuanceApplicationService) Issue(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TokenIssuanceApplicationService.Issue")
	defer span.End()

	span.SetAttributes(
		attribute.String("coupon_id", req.CouponID),
		attribute.String("customer_id", req.CustomerID),
	)

	c, err := s.couponRepo.FindByID(ctx, req.CouponID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return nil, err
		}
		s.logger.Error(ctx, "Failed to load coupon", err, map[string]interface{}{
			"coupon_id": req.CouponID,
		})
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}

	now := s.now()
	if err := c.CheckIssuable(req.CustomerID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Info(ctx, "Coupon not eligible for token issuance", map[string]interface{}{
			"coupon_id":   req.CouponID,
			"customer_id": req.CustomerID,
			"status":      c.Status().String(),
		})
		return nil, err
	}

	nonce, err := s.newNonce()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	tok := &redemption.Token{
		CouponID:   c.ID(),
		CustomerID: c.CustomerID(),
		OrderID:    c.OrderID(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
		Nonce:      nonce,
	}
	signed, err := s.signer.Sign(tok)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to sign redemption token", err, map[string]interface{}{
			"coupon_id": req.CouponID,
		})
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.metrics.RecordTokenIssued(ctx, tok.KeyVersion)
	span.SetAttributes(attribute.String("key_version", tok.KeyVersion))
	span.SetStatus(otelcodes.Ok, "token issued")

	s.logger.Debug(ctx, "Redemption token issued", map[string]interface{}{
		"coupon_id":   c.ID(),
		"key_version": tok.KeyVersion,
		"expires_at":  tok.ExpiresAt,
	})

	return &IssueTokenResponse{
		Token:      signed,
		ExpiresAt:  tok.ExpiresAt,
		KeyVersion: tok.KeyVersion,
	}, nil
}
