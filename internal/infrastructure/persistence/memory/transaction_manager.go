package memory

import "context"

// TransactionManager インメモリ構成のトランザクションマネージャー
// 各リポジトリの操作はそれぞれ原子的であり、まとめてロールバックする手段は持たない
type TransactionManager struct{}

// NewTransactionManager 新しいTransactionManagerを作成
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// WithTransaction 関数をそのまま実行
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
