package replay

import (
	"context"
	"sync"
	"time"
)

// MemoryCache プロセス内のnonce消費キャッシュ（単一インスタンス構成用）
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // nonce -> 失効時刻
	now     func() time.Time
	lastGC  time.Time
}

// NewMemoryCache 新しいMemoryCacheを作成
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkConsumed nonceが未登録の場合のみ登録し、登録できたかを返す
func (c *MemoryCache) MarkConsumed(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.gcLocked(now)

	if exp, ok := c.entries[nonce]; ok && now.Before(exp) {
		return false, nil
	}
	c.entries[nonce] = now.Add(ttl)
	return true, nil
}

// IsConsumed nonceが消費済みかを返す
func (c *MemoryCache) IsConsumed(ctx context.Context, nonce string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.entries[nonce]
	return ok && c.now().Before(exp), nil
}

// Len 保持しているエントリ数を返す
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// gcLocked 失効したエントリを削除する（1秒に1回まで）
func (c *MemoryCache) gcLocked(now time.Time) {
	if now.Sub(c.lastGC) < time.Second {
		return
	}
	for k, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, k)
		}
	}
	c.lastGC = now
}
