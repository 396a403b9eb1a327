package coupon

import (
	"fmt"
)

// CouponStatus クーポンステータスを表す値オブジェクト
type CouponStatus string

const (
	CouponStatusActive    CouponStatus = "ACTIVE"    // 利用可能
	CouponStatusUsed      CouponStatus = "USED"      // 使用済み
	CouponStatusExpired   CouponStatus = "EXPIRED"   // 期限切れ
	CouponStatusCancelled CouponStatus = "CANCELLED" // キャンセル済み
)

// NewCouponStatus 新しいCouponStatusを作成
func NewCouponStatus(s string) (CouponStatus, error) {
	switch CouponStatus(s) {
	case CouponStatusActive, CouponStatusUsed, CouponStatusExpired, CouponStatusCancelled:
		return CouponStatus(s), nil
	default:
		return "", fmt.Errorf("invalid coupon status: %s", s)
	}
}

// String 文字列表現を返す
func (cs CouponStatus) String() string {
	return string(cs)
}

// Valid 有効なステータスかどうかを返す
func (cs CouponStatus) Valid() bool {
	switch cs {
	case CouponStatusActive, CouponStatusUsed, CouponStatusExpired, CouponStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive 利用可能状態かどうかを返す
func (cs CouponStatus) IsActive() bool {
	return cs == CouponStatusActive
}

// IsTerminal 終端状態かどうかを返す（USED/EXPIRED/CANCELLEDからは遷移しない）
func (cs CouponStatus) IsTerminal() bool {
	return cs == CouponStatusUsed || cs == CouponStatusExpired || cs == CouponStatusCancelled
}
