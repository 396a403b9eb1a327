// Package memory 単一プロセス構成・テスト用のインメモリ永続化実装
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"redemption-server/internal/domain/coupon"
)

// CouponRepository インメモリ実装のCouponRepository
type CouponRepository struct {
	mu      sync.Mutex
	coupons map[string]coupon.Attributes
}

// NewCouponRepository 新しいCouponRepositoryを作成
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{coupons: make(map[string]coupon.Attributes)}
}

// Save クーポンを登録（既存の場合は上書き）
func (r *CouponRepository) Save(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[c.ID()] = c.Attributes()
	return nil
}

// FindByID IDでクーポンを取得
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	a, ok := r.coupons[id]
	r.mu.Unlock()

	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return coupon.Reconstruct(a)
}

// CompareAndSet statusがACTIVEかつversionが一致する場合のみMutationを適用する
func (r *CouponRepository) CompareAndSet(ctx context.Context, id string, expectedVersion int64, m coupon.Mutation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !m.Status.IsTerminal() {
		return false, coupon.ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.coupons[id]
	if !ok || a.Version != expectedVersion || !a.Status.IsActive() {
		return false, nil
	}

	a.Status = m.Status
	a.UsedAt = m.UsedAt
	a.UsedByStaffID = m.UsedByStaffID
	a.UpdatedAt = m.UpdatedAt
	a.Version++
	r.coupons[id] = a
	return true, nil
}

// FindExpiredActive 業務期限を過ぎたACTIVEなクーポンを期限の古い順に取得
func (r *CouponRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*coupon.Coupon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	var expired []coupon.Attributes
	for _, a := range r.coupons {
		if a.Status.IsActive() && now.After(a.ExpiresAt) {
			expired = append(expired, a)
		}
	}
	r.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	coupons := make([]*coupon.Coupon, 0, len(expired))
	for _, a := range expired {
		c, err := coupon.Reconstruct(a)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}
