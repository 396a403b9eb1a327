package redemption

import (
	"errors"
	"fmt"

	"redemption-server/internal/domain/coupon"
)

// Outcome 引き換え試行の結果コード
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeMalformed        Outcome = "MALFORMED"
	OutcomeUnknownKey       Outcome = "UNKNOWN_KEY"
	OutcomeInvalidSignature Outcome = "INVALID_SIGNATURE"
	OutcomeTokenExpired     Outcome = "TOKEN_EXPIRED"
	OutcomeNotYetValid      Outcome = "NOT_YET_VALID"
	OutcomeAlreadyUsed      Outcome = "ALREADY_USED"
	OutcomeReplayedToken    Outcome = "REPLAYED_TOKEN"
	OutcomeWrongMerchant    Outcome = "WRONG_MERCHANT"
	OutcomeCouponExpired    Outcome = "COUPON_EXPIRED"
	OutcomeCouponNotFound   Outcome = "COUPON_NOT_FOUND"
)

// Category 結果の分類
type Category string

const (
	CategorySuccess    Category = "success"
	CategoryStructural Category = "structural" // 改ざん・クライアント不具合。再試行しない
	CategoryTemporal   Category = "temporal"   // 通常運用で発生。再発行で解消
	CategoryBusiness   Category = "business"   // 競合や誤用による正当な拒否
	CategoryReplay     Category = "replay"     // 不正パターンの可能性
)

// NewOutcome 新しいOutcomeを作成
func NewOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if o.Category() == "" {
		return "", fmt.Errorf("invalid outcome: %s", s)
	}
	return o, nil
}

// String 文字列表現を返す
func (o Outcome) String() string {
	return string(o)
}

// IsSuccess 成功かどうかを返す
func (o Outcome) IsSuccess() bool {
	return o == OutcomeSuccess
}

// Category 結果の分類を返す（不明なコードの場合は空文字）
func (o Outcome) Category() Category {
	switch o {
	case OutcomeSuccess:
		return CategorySuccess
	case OutcomeMalformed, OutcomeUnknownKey, OutcomeInvalidSignature:
		return CategoryStructural
	case OutcomeTokenExpired, OutcomeNotYetValid:
		return CategoryTemporal
	case OutcomeAlreadyUsed, OutcomeWrongMerchant, OutcomeCouponExpired, OutcomeCouponNotFound:
		return CategoryBusiness
	case OutcomeReplayedToken:
		return CategoryReplay
	default:
		return ""
	}
}

// OutcomeFromError ドメインエラーを結果コードに変換する
// 対応しないエラー（インフラ障害など）の場合はfalseを返す
func OutcomeFromError(err error) (Outcome, bool) {
	switch {
	case err == nil:
		return OutcomeSuccess, true
	case errors.Is(err, ErrTokenMalformed):
		return OutcomeMalformed, true
	case errors.Is(err, ErrUnknownKey):
		return OutcomeUnknownKey, true
	case errors.Is(err, ErrInvalidSignature):
		return OutcomeInvalidSignature, true
	case errors.Is(err, ErrTokenExpired):
		return OutcomeTokenExpired, true
	case errors.Is(err, ErrTokenNotYetValid):
		return OutcomeNotYetValid, true
	case errors.Is(err, ErrReplayedToken):
		return OutcomeReplayedToken, true
	case errors.Is(err, coupon.ErrCouponNotFound):
		return OutcomeCouponNotFound, true
	case errors.Is(err, coupon.ErrWrongMerchant):
		return OutcomeWrongMerchant, true
	case errors.Is(err, coupon.ErrCouponExpired):
		return OutcomeCouponExpired, true
	case errors.Is(err, coupon.ErrCouponAlreadyUsed):
		return OutcomeAlreadyUsed, true
	default:
		return "", false
	}
}
