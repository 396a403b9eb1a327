package token_issuance

import "time"

// IssueTokenRequest トークン発行リクエスト
type IssueTokenRequest struct {
	CouponID   string
	CustomerID string
}

// IssueTokenResponse トークン発行レスポンス
type IssueTokenResponse struct {
	Token      string
	ExpiresAt  time.Time
	KeyVersion string
}
