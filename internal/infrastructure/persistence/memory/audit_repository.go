package memory

import (
	"context"
	"sync"

	"redemption-server/internal/domain/redemption"
)

// AuditRepository インメモリ実装のAuditRepository（追記のみ）
type AuditRepository struct {
	mu      sync.RWMutex
	records []*redemption.Record
}

// NewAuditRepository 新しいAuditRepositoryを作成
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append 監査レコードを追記
func (r *AuditRepository) Append(ctx context.Context, rec *redemption.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// FindByCouponID クーポンの監査レコードを新しい順に取得
func (r *AuditRepository) FindByCouponID(ctx context.Context, couponID string, limit int) ([]*redemption.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*redemption.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].CouponID() != couponID {
			continue
		}
		out = append(out, r.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// All 全ての監査レコードを追記順に返す
func (r *AuditRepository) All() []*redemption.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*redemption.Record, len(r.records))
	copy(out, r.records)
	return out
}
