package handler

import (
	"context"
	"time"

	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/presentation/grpc/pb"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RedemptionHandler gRPC引き換えサービスハンドラー
// 拒否結果はエラーではなくレスポンスのoutcomeで返す
type RedemptionHandler struct {
	pb.UnimplementedRedemptionServiceServer
	tokenService      *token_issuance.TokenIssuanceApplicationService
	redemptionService *coupon_redemption.RedemptionApplicationService
}

// NewRedemptionHandler 新しいRedemptionHandlerを作成
func NewRedemptionHandler(
	tokenService *token_issuance.TokenIssuanceApplicationService,
	redemptionService *coupon_redemption.RedemptionApplicationService,
) *RedemptionHandler {
	return &RedemptionHandler{
		tokenService:      tokenService,
		redemptionService: redemptionService,
	}
}

// IssueToken 引き換えトークン発行（顧客）
func (h *RedemptionHandler) IssueToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := requireRole(ctx, auth.RoleCustomer)
	if err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "coupon_id is required")
	}

	resp, err := h.tokenService.Issue(ctx, &token_issuance.IssueTokenRequest{
		CouponID:   req.GetValue(),
		CustomerID: p.UserID,
	})
	if err != nil {
		return nil, handleError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"token":       resp.Token,
		"expires_at":  resp.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"key_version": resp.KeyVersion,
	})
}

// Validate 引き換えプレビュー（スタッフ）
func (h *RedemptionHandler) Validate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := requireRole(ctx, auth.RoleStaff)
	if err != nil {
		return nil, err
	}

	resp, err := h.redemptionService.Validate(ctx, redeemRequest(p, req))
	if err != nil {
		return nil, handleError(err)
	}
	return redemptionStruct(resp)
}

// Process 引き換え確定（スタッフ）
func (h *RedemptionHandler) Process(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := requireRole(ctx, auth.RoleStaff)
	if err != nil {
		return nil, err
	}

	resp, err := h.redemptionService.Redeem(ctx, redeemRequest(p, req))
	if err != nil {
		return nil, handleError(err)
	}
	return redemptionStruct(resp)
}

// ListAudit 監査ログ取得（スタッフ）
func (h *RedemptionHandler) ListAudit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := requireRole(ctx, auth.RoleStaff)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	couponID := fields["coupon_id"].GetStringValue()
	if couponID == "" {
		return nil, status.Error(codes.InvalidArgument, "coupon_id is required")
	}
	limit := int(fields["limit"].GetNumberValue())
	if limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid limit")
	}

	resp, err := h.redemptionService.ListAudit(ctx, &coupon_redemption.ListAuditRequest{
		CouponID:   couponID,
		StaffID:    p.UserID,
		MerchantID: p.MerchantID,
		Limit:      limit,
	})
	if err != nil {
		return nil, handleError(err)
	}

	records := make([]interface{}, 0, len(resp.Records))
	for _, r := range resp.Records {
		records = append(records, map[string]interface{}{
			"id":          r.ID,
			"coupon_id":   r.CouponID,
			"staff_id":    r.StaffID,
			"merchant_id": r.MerchantID,
			"outcome":     r.Outcome,
			"token_nonce": r.TokenNonce,
			"timestamp":   r.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"coupon_id": resp.CouponID,
		"records":   records,
	})
}

func redeemRequest(p auth.Principal, req *wrapperspb.StringValue) *coupon_redemption.RedeemRequest {
	return &coupon_redemption.RedeemRequest{
		Token:      req.GetValue(),
		StaffID:    p.UserID,
		MerchantID: p.MerchantID,
	}
}

func redemptionStruct(resp *coupon_redemption.RedeemResponse) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"outcome":  resp.Outcome.String(),
		"category": string(resp.Category),
		"message":  resp.Message,
	}
	if resp.RecordID != "" {
		m["record_id"] = resp.RecordID
	}
	if s := resp.Coupon; s != nil {
		summary := map[string]interface{}{
			"coupon_id":   s.CouponID,
			"order_id":    s.OrderID,
			"deal_id":     s.DealID,
			"deal_title":  s.DealTitle,
			"customer_id": s.CustomerID,
			"face_value":  s.FaceValue.StringFixed(2),
			"status":      s.Status,
			"expires_at":  s.ExpiresAt.UTC().Format(time.RFC3339Nano),
		}
		if s.UsedAt != nil {
			summary["used_at"] = s.UsedAt.UTC().Format(time.RFC3339Nano)
		}
		m["coupon"] = summary
	}
	return structpb.NewStruct(m)
}
