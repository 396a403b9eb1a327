package coupon

import (
	"context"
	"time"
)

// CouponRepository クーポンリポジトリインターフェース
type CouponRepository interface {
	// FindByID クーポンIDでクーポンを取得（バージョンを含む）
	FindByID(ctx context.Context, couponID string) (*Coupon, error)

	// CompareAndSet status == ACTIVE かつ version == expectedVersion の場合のみMutationを適用し、
	// バージョンをインクリメントする。適用された場合はtrueを返す
	CompareAndSet(ctx context.Context, couponID string, expectedVersion int64, m Mutation) (bool, error)

	// FindExpiredActive 業務期限を過ぎたACTIVEなクーポンを取得
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*Coupon, error)
}

// StaffDirectory 加盟店スタッフの所属確認インターフェース
type StaffDirectory interface {
	// IsStaffOf スタッフが加盟店に所属しているかチェック
	IsStaffOf(ctx context.Context, staffID string, merchantID string) (bool, error)
}
