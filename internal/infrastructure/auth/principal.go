// Package auth ダッシュボードが発行するBearerトークンの検証と主体情報
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role 主体のロール
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

var (
	// ErrMissingToken Authorizationヘッダーなし
	ErrMissingToken = errors.New("missing authorization header")
	// ErrInvalidHeader Bearer形式でない
	ErrInvalidHeader = errors.New("invalid authorization header format")
	// ErrInvalidToken 検証失敗または期限切れ
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidClaims 必須クレームの欠落
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Principal 認証済みの主体
type Principal struct {
	UserID     string
	Role       Role
	MerchantID string // スタッフの場合のみ
}

// IsStaff スタッフかどうかを返す
func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff
}

type principalClaims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	MerchantID string `json:"merchant_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator Bearerトークンの発行と検証
type Authenticator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewAuthenticator 新しいAuthenticatorを作成
func NewAuthenticator(secret, issuer string) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// ParseHeader Authorizationヘッダーの値から主体を取り出す
func (a *Authenticator) ParseHeader(header string) (Principal, error) {
	if header == "" {
		return Principal{}, ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Principal{}, ErrInvalidHeader
	}
	return a.Parse(parts[1])
}

// Parse Bearerトークンを検証して主体を返す
func (a *Authenticator) Parse(tokenString string) (Principal, error) {
	claims := &principalClaims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	p := Principal{UserID: claims.UserID, Role: Role(claims.Role), MerchantID: claims.MerchantID}
	if p.UserID == "" {
		return Principal{}, ErrInvalidClaims
	}
	switch p.Role {
	case RoleCustomer:
	case RoleStaff:
		if p.MerchantID == "" {
			return Principal{}, ErrInvalidClaims
		}
	default:
		return Principal{}, ErrInvalidClaims
	}
	return p, nil
}

// Issue 主体のBearerトークンを発行（運用ツール・テスト用）
func (a *Authenticator) Issue(p Principal, now time.Time, ttl time.Duration) (string, error) {
	claims := principalClaims{
		UserID:     p.UserID,
		Role:       string(p.Role),
		MerchantID: p.MerchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type principalKey struct{}

// WithPrincipal コンテキストに主体を設定
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom コンテキストから主体を取得
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
