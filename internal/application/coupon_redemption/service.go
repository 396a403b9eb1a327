package coupon_redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/redemption"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
)

const (
	operationRedeem   = "redeem"
	operationValidate = "validate"

	// minReplayTTL 消費済みnonceを保持する最短期間
	minReplayTTL = time.Second

	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// RedemptionApplicationService 店舗スタッフによる引き換えを調停するアプリケーションサービス
// 同一クーポンに対する同時引き換えのうち成功するのは高々1件
type RedemptionApplicationService struct {
	couponRepo coupon.CouponRepository
	staffDir   coupon.StaffDirectory
	auditRepo  redemption.AuditRepository
	verifier   redemption.TokenVerifier
	replay     redemption.ReplayCache
	txManager  redemption.TransactionManager
	newID      func() string
	now        func() time.Time
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// Option サービスのオプション
type Option func(*RedemptionApplicationService)

// WithClock 現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *RedemptionApplicationService) {
		s.now = now
	}
}

// WithIDGenerator 監査レコードIDの生成関数を差し替える
func WithIDGenerator(newID func() string) Option {
	return func(s *RedemptionApplicationService) {
		s.newID = newID
	}
}

// NewRedemptionApplicationService 新しいRedemptionApplicationServiceを作成
func NewRedemptionApplicationService(
	couponRepo coupon.CouponRepository,
	staffDir coupon.StaffDirectory,
	auditRepo redemption.AuditRepository,
	verifier redemption.TokenVerifier,
	replay redemption.ReplayCache,
	txManager redemption.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	opts ...Option,
) *RedemptionApplicationService {
	s := &RedemptionApplicationService{
		couponRepo: couponRepo,
		staffDir:   staffDir,
		auditRepo:  auditRepo,
		verifier:   verifier,
		replay:     replay,
		txManager:  txManager,
		newID:      uuid.NewString,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("redemption-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Redeem トークンを検証し、クーポンを使用済みにする
// 拒否はRedeemResponse.Outcomeで返し、errorはインフラ障害または権限エラーの場合のみ返す
// 全ての試行（成功・拒否）は監査ログに記録される
func (s *RedemptionApplicationService) Redeem(ctx context.Context, req *RedeemRequest) (*RedeemResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RedemptionApplicationService.Redeem")
	defer span.End()

	span.SetAttributes(
		attribute.String("staff_id", req.StaffID),
		attribute.String("merchant_id", req.MerchantID),
	)

	if err := s.authorizeStaff(ctx, req.StaffID, req.MerchantID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	now := s.now()

	// 1. トークン検証（構造 → 鍵 → 署名 → 有効期間）
	tok, err := s.verifier.Verify(req.Token)
	if err != nil {
		outcome, ok := redemption.OutcomeFromError(err)
		if !ok {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to verify token: %w", err)
		}
		return s.reject(ctx, span, req, tok, outcome, nil, now)
	}
	span.SetAttributes(attribute.String("coupon_id", tok.CouponID))

	// 2. クーポン取得
	c, err := s.couponRepo.FindByID(ctx, tok.CouponID)
	if err != nil {
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return s.reject(ctx, span, req, tok, redemption.OutcomeCouponNotFound, nil, now)
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to load coupon", err, map[string]interface{}{
			"coupon_id": tok.CouponID,
		})
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}

	// 3. 業務チェック（加盟店 → 業務期限 → ステータス）
	if err := c.CheckRedeemable(req.MerchantID, now); err != nil {
		outcome, _ := redemption.OutcomeFromError(err)
		return s.reject(ctx, span, req, tok, outcome, summaryFor(outcome, c), now)
	}

	// 4. nonceの消費
	inserted, err := s.replay.MarkConsumed(ctx, tok.Nonce, replayTTL(tok, now))
	switch {
	case err != nil:
		// キャッシュ障害時もCompareAndSetが二重引き換えを防ぐため処理を続行する
		s.metrics.RecordReplayCacheError(ctx)
		s.logger.Error(ctx, "Replay cache unavailable, continuing without replay detection", err, map[string]interface{}{
			"coupon_id": tok.CouponID,
		})
	case !inserted:
		s.metrics.RecordReplay(ctx)
		return s.reject(ctx, span, req, tok, redemption.OutcomeReplayedToken, nil, now)
	}

	mutation, err := c.Redeem(req.StaffID, now)
	if err != nil {
		outcome, ok := redemption.OutcomeFromError(err)
		if !ok {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		return s.reject(ctx, span, req, tok, outcome, newCouponSummary(c), now)
	}

	// 5. 状態遷移と成功レコードを同一トランザクションで確定
	recordID := s.newID()
	applied := false
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.couponRepo.CompareAndSet(ctx, c.ID(), c.Version(), mutation)
		if err != nil {
			return fmt.Errorf("failed to update coupon: %w", err)
		}
		if !ok {
			return nil
		}

		rec, err := redemption.NewRecord(recordID, c.ID(), req.StaffID, req.MerchantID, redemption.OutcomeSuccess, tok.Nonce, now)
		if err != nil {
			return err
		}
		if err := s.auditRepo.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to commit redemption", err, map[string]interface{}{
			"coupon_id": c.ID(),
			"staff_id":  req.StaffID,
		})
		return nil, err
	}
	if !applied {
		// 同時実行された別の引き換えが先に確定した
		return s.reject(ctx, span, req, tok, redemption.OutcomeAlreadyUsed, nil, now)
	}

	if err := c.Apply(mutation); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	s.metrics.RecordOutcome(ctx, operationRedeem, redemption.OutcomeSuccess.String(), string(redemption.CategorySuccess))
	span.SetAttributes(attribute.String("outcome", redemption.OutcomeSuccess.String()))
	span.SetStatus(otelcodes.Ok, "coupon redeemed")

	s.logger.Info(ctx, "Coupon redeemed", map[string]interface{}{
		"coupon_id":   c.ID(),
		"staff_id":    req.StaffID,
		"merchant_id": req.MerchantID,
		"record_id":   recordID,
	})

	return &RedeemResponse{
		Outcome:  redemption.OutcomeSuccess,
		Category: redemption.CategorySuccess,
		Message:  MessageFor(redemption.OutcomeSuccess),
		RecordID: recordID,
		Coupon:   newCouponSummary(c),
	}, nil
}

// Validate 引き換えを行わずにトークンとクーポンを確認する（プレビュー）
// 状態を変更せず、監査ログにも記録しない
func (s *RedemptionApplicationService) Validate(ctx context.Context, req *RedeemRequest) (*RedeemResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RedemptionApplicationService.Validate")
	defer span.End()

	span.SetAttributes(
		attribute.String("staff_id", req.StaffID),
		attribute.String("merchant_id", req.MerchantID),
	)

	if err := s.authorizeStaff(ctx, req.StaffID, req.MerchantID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	now := s.now()

	tok, err := s.verifier.Verify(req.Token)
	if err != nil {
		outcome, ok := redemption.OutcomeFromError(err)
		if !ok {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to verify token: %w", err)
		}
		return s.preview(ctx, span, req, tok, outcome, nil), nil
	}
	span.SetAttributes(attribute.String("coupon_id", tok.CouponID))

	c, err := s.couponRepo.FindByID(ctx, tok.CouponID)
	if err != nil {
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return s.preview(ctx, span, req, tok, redemption.OutcomeCouponNotFound, nil), nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}

	if err := c.CheckRedeemable(req.MerchantID, now); err != nil {
		outcome, _ := redemption.OutcomeFromError(err)
		return s.preview(ctx, span, req, tok, outcome, summaryFor(outcome, c)), nil
	}

	consumed, err := s.replay.IsConsumed(ctx, tok.Nonce)
	if err != nil {
		s.metrics.RecordReplayCacheError(ctx)
		s.logger.Error(ctx, "Replay cache unavailable during preview", err, map[string]interface{}{
			"coupon_id": tok.CouponID,
		})
	} else if consumed {
		return s.preview(ctx, span, req, tok, redemption.OutcomeReplayedToken, nil), nil
	}

	return s.preview(ctx, span, req, tok, redemption.OutcomeSuccess, newCouponSummary(c)), nil
}

// ListAudit 自店舗のクーポンの監査ログを新しい順に取得
func (s *RedemptionApplicationService) ListAudit(ctx context.Context, req *ListAuditRequest) (*ListAuditResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RedemptionApplicationService.ListAudit")
	defer span.End()

	span.SetAttributes(
		attribute.String("coupon_id", req.CouponID),
		attribute.String("merchant_id", req.MerchantID),
	)

	if err := s.authorizeStaff(ctx, req.StaffID, req.MerchantID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	c, err := s.couponRepo.FindByID(ctx, req.CouponID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}
	if c.MerchantID() != req.MerchantID {
		err := coupon.ErrWrongMerchant
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	records, err := s.auditRepo.FindByCouponID(ctx, req.CouponID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find audit records: %w", err)
	}

	resp := &ListAuditResponse{
		CouponID: req.CouponID,
		Records:  make([]*AuditRecord, 0, len(records)),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, newAuditRecord(r))
	}

	span.SetStatus(otelcodes.Ok, "audit records retrieved")
	return resp, nil
}

// authorizeStaff スタッフが加盟店に所属しているかチェック
func (s *RedemptionApplicationService) authorizeStaff(ctx context.Context, staffID, merchantID string) error {
	if staffID == "" || merchantID == "" {
		return coupon.ErrStaffNotInMerchant
	}
	ok, err := s.staffDir.IsStaffOf(ctx, staffID, merchantID)
	if err != nil {
		s.logger.Error(ctx, "Failed to check staff membership", err, map[string]interface{}{
			"staff_id":    staffID,
			"merchant_id": merchantID,
		})
		return fmt.Errorf("failed to check staff membership: %w", err)
	}
	if !ok {
		s.logger.Warn(ctx, "Staff does not belong to merchant", map[string]interface{}{
			"staff_id":    staffID,
			"merchant_id": merchantID,
			"security":    true,
		})
		return coupon.ErrStaffNotInMerchant
	}
	return nil
}

// reject 拒否を監査ログに記録してから結果を返す
// 監査ログへの書き込みに失敗した場合は結果を返さずエラーにする
func (s *RedemptionApplicationService) reject(
	ctx context.Context,
	span trace.Span,
	req *RedeemRequest,
	tok *redemption.Token,
	outcome redemption.Outcome,
	summary *CouponSummary,
	now time.Time,
) (*RedeemResponse, error) {
	var couponID, nonce string
	if tok != nil {
		couponID = tok.CouponID
		nonce = tok.Nonce
	}

	recordID := s.newID()
	rec, err := redemption.NewRecord(recordID, couponID, req.StaffID, req.MerchantID, outcome, nonce, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if err := s.auditRepo.Append(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to append audit record", err, map[string]interface{}{
			"coupon_id": couponID,
			"outcome":   outcome.String(),
		})
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}

	s.logOutcome(ctx, operationRedeem, req, couponID, outcome)
	s.metrics.RecordOutcome(ctx, operationRedeem, outcome.String(), string(outcome.Category()))
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	span.SetStatus(otelcodes.Ok, "redemption rejected")

	return &RedeemResponse{
		Outcome:  outcome,
		Category: outcome.Category(),
		Message:  MessageFor(outcome),
		RecordID: recordID,
		Coupon:   summary,
	}, nil
}

// preview プレビュー結果を作成する（監査ログには記録しない）
func (s *RedemptionApplicationService) preview(
	ctx context.Context,
	span trace.Span,
	req *RedeemRequest,
	tok *redemption.Token,
	outcome redemption.Outcome,
	summary *CouponSummary,
) *RedeemResponse {
	var couponID string
	if tok != nil {
		couponID = tok.CouponID
	}
	if !outcome.IsSuccess() {
		s.logOutcome(ctx, operationValidate, req, couponID, outcome)
	}
	s.metrics.RecordOutcome(ctx, operationValidate, outcome.String(), string(outcome.Category()))
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	span.SetStatus(otelcodes.Ok, "validation completed")

	return &RedeemResponse{
		Outcome:  outcome,
		Category: outcome.Category(),
		Message:  MessageFor(outcome),
		Coupon:   summary,
	}
}

// logOutcome 結果の分類に応じたレベルで拒否をログに出力する
func (s *RedemptionApplicationService) logOutcome(ctx context.Context, operation string, req *RedeemRequest, couponID string, outcome redemption.Outcome) {
	fields := map[string]interface{}{
		"operation":   operation,
		"outcome":     outcome.String(),
		"category":    string(outcome.Category()),
		"coupon_id":   couponID,
		"staff_id":    req.StaffID,
		"merchant_id": req.MerchantID,
	}

	switch outcome.Category() {
	case redemption.CategoryStructural:
		fields["security"] = true
		s.logger.Warn(ctx, "Redemption token rejected", fields)
	case redemption.CategoryReplay:
		fields["replay"] = true
		s.logger.Warn(ctx, "Redemption token replayed", fields)
	default:
		s.logger.Info(ctx, "Redemption rejected", fields)
	}
}

// summaryFor 拒否時に返すクーポン概要（他店舗のクーポンの内容は返さない）
func summaryFor(outcome redemption.Outcome, c *coupon.Coupon) *CouponSummary {
	if outcome == redemption.OutcomeWrongMerchant {
		return nil
	}
	return newCouponSummary(c)
}

// replayTTL nonceの保持期間（トークンの残り有効期間、最短1秒）
func replayTTL(tok *redemption.Token, now time.Time) time.Duration {
	ttl := tok.RemainingLifetime(now)
	if ttl < minReplayTTL {
		return minReplayTTL
	}
	return ttl
}
