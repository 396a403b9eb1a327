package redemption

import (
	"time"
)

// Token 引き換えトークンのクレーム（署名済み文字列からのみ復元され、永続化されない）
type Token struct {
	CouponID   string
	CustomerID string
	OrderID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Nonce      string
	KeyVersion string
}

// RemainingLifetime 指定時刻からの残り有効期間を返す（期限切れの場合は0）
func (t *Token) RemainingLifetime(now time.Time) time.Duration {
	remaining := t.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenSigner トークン署名インターフェース（現在の鍵バージョンで署名する）
type TokenSigner interface {
	Sign(token *Token) (string, error)
}

// TokenVerifier トークン検証インターフェース
// 構造・鍵バージョン・署名・有効期間のみを検証し、副作用を持たない
// 有効期間による拒否の場合は、署名検証済みのクレームもあわせて返す
type TokenVerifier interface {
	Verify(signed string) (*Token, error)
}
