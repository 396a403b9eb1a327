package coupon

import "errors"

var (
	// ErrCouponNotFound クーポンが見つからないエラー
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponAlreadyUsed クーポンが利用可能状態ではないエラー
	ErrCouponAlreadyUsed = errors.New("coupon already used")
	// ErrCouponExpired クーポンの有効期限切れエラー
	ErrCouponExpired = errors.New("coupon expired")
	// ErrWrongMerchant 別の加盟店のクーポンエラー
	ErrWrongMerchant = errors.New("coupon belongs to another merchant")
	// ErrNotEligible トークン発行対象外エラー
	ErrNotEligible = errors.New("coupon not eligible for redemption token")
	// ErrInvalidTransition 許可されていない状態遷移エラー
	ErrInvalidTransition = errors.New("invalid coupon status transition")
	// ErrInconsistentState 永続化データの不整合エラー
	ErrInconsistentState = errors.New("inconsistent coupon state")
	// ErrStaffNotInMerchant スタッフが加盟店に所属していないエラー
	ErrStaffNotInMerchant = errors.New("staff does not belong to merchant")
)
