package redemption

import (
	"context"
	"time"
)

// AuditRepository 監査ログリポジトリインターフェース（追記専用）
type AuditRepository interface {
	// Append 監査レコードを追記
	Append(ctx context.Context, record *Record) error

	// FindByCouponID クーポンIDで監査レコードを新しい順に取得
	FindByCouponID(ctx context.Context, couponID string, limit int) ([]*Record, error)
}

// ReplayCache 消費済みnonceのTTL付きストア
type ReplayCache interface {
	// MarkConsumed nonceをアトミックに登録する。既に登録済みの場合はfalseを返す
	MarkConsumed(ctx context.Context, nonce string, ttl time.Duration) (bool, error)

	// IsConsumed nonceが消費済みかどうかを返す（登録はしない）
	IsConsumed(ctx context.Context, nonce string) (bool, error)
}

// TransactionManager トランザクション管理インターフェース
type TransactionManager interface {
	// WithTransaction トランザクション内で関数を実行
	// 渡されるcontextを使ったリポジトリ操作は同一トランザクションに含まれる
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
