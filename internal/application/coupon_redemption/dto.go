package coupon_redemption

import (
	"time"

	"github.com/shopspring/decimal"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/redemption"
)

// RedeemRequest 引き換えリクエスト（プレビュー・確定共通）
type RedeemRequest struct {
	Token      string
	StaffID    string
	MerchantID string
}

// CouponSummary スタッフに表示するクーポン概要
type CouponSummary struct {
	CouponID   string
	OrderID    string
	DealID     string
	DealTitle  string
	CustomerID string
	FaceValue  decimal.Decimal
	Status     string
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// RedeemResponse 引き換え結果
// 拒否もエラーではなくOutcomeとして返す
type RedeemResponse struct {
	Outcome  redemption.Outcome
	Category redemption.Category
	Message  string
	RecordID string // プレビューの場合は空
	Coupon   *CouponSummary
}

// ListAuditRequest 監査ログ取得リクエスト
type ListAuditRequest struct {
	CouponID   string
	StaffID    string
	MerchantID string
	Limit      int
}

// AuditRecord 監査レコード
type AuditRecord struct {
	ID         string
	CouponID   string
	StaffID    string
	MerchantID string
	Outcome    string
	TokenNonce string
	Timestamp  time.Time
}

// ListAuditResponse 監査ログ取得レスポンス
type ListAuditResponse struct {
	CouponID string
	Records  []*AuditRecord
}

func newCouponSummary(c *coupon.Coupon) *CouponSummary {
	return &CouponSummary{
		CouponID:   c.ID(),
		OrderID:    c.OrderID(),
		DealID:     c.DealID(),
		DealTitle:  c.DealTitle(),
		CustomerID: c.CustomerID(),
		FaceValue:  c.FaceValue(),
		Status:     c.Status().String(),
		ExpiresAt:  c.ExpiresAt(),
		UsedAt:     c.UsedAt(),
	}
}

func newAuditRecord(r *redemption.Record) *AuditRecord {
	return &AuditRecord{
		ID:         r.ID(),
		CouponID:   r.CouponID(),
		StaffID:    r.StaffID(),
		MerchantID: r.MerchantID(),
		Outcome:    r.Outcome().String(),
		TokenNonce: r.TokenNonce(),
		Timestamp:  r.Timestamp(),
	}
}

var outcomeMessages = map[redemption.Outcome]string{
	redemption.OutcomeSuccess:          "coupon redeemed",
	redemption.OutcomeMalformed:        "token could not be read",
	redemption.OutcomeUnknownKey:       "token was signed with an unknown key",
	redemption.OutcomeInvalidSignature: "token signature is invalid",
	redemption.OutcomeTokenExpired:     "token has expired, ask the customer to refresh",
	redemption.OutcomeNotYetValid:      "token is not valid yet, check the device clock",
	redemption.OutcomeAlreadyUsed:      "coupon has already been used",
	redemption.OutcomeReplayedToken:    "token has already been presented",
	redemption.OutcomeWrongMerchant:    "coupon belongs to another merchant",
	redemption.OutcomeCouponExpired:    "coupon has expired",
	redemption.OutcomeCouponNotFound:   "coupon not found",
}

// MessageFor 結果コードの表示用メッセージを返す
func MessageFor(o redemption.Outcome) string {
	return outcomeMessages[o]
}
