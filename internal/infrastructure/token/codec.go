package token

import (
	"errors"
	"fmt"
	"time"

	"redemption-server/internal/domain/redemption"
	"redemption-server/internal/domain/signing"

	"github.com/golang-jwt/jwt/v5"
)

const keyIDHeader = "kid"

// claims 引き換えトークンのJWTクレーム
// 有効期間はミリ秒精度で保持する（NumericDateは秒精度のため）
type claims struct {
	CouponID    string `json:"cid"`
	OrderID     string `json:"oid,omitempty"`
	IssuedAtMs  int64  `json:"iat_ms"`
	ExpiresAtMs int64  `json:"exp_ms"`
	jwt.RegisteredClaims
}

// Codec HS256で引き換えトークンを署名・検証する
type Codec struct {
	keys   *signing.KeyRing
	issuer string
	skew   time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// Option Codecのオプション
type Option func(*Codec)

// WithClock 現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec 新しいCodecを作成
func NewCodec(keys *signing.KeyRing, issuer string, skew time.Duration, opts ...Option) *Codec {
	c := &Codec{
		keys:   keys,
		issuer: issuer,
		skew:   skew,
		// 時刻検証はミリ秒精度で自前で行う
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign 現在の鍵でトークンに署名する
// tok.KeyVersionは署名に使用した鍵バージョンで上書きされる
func (c *Codec) Sign(tok *redemption.Token) (string, error) {
	key, err := c.keys.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current signing key: %w", err)
	}
	if tok.CouponID == "" || tok.CustomerID == "" || tok.Nonce == "" {
		return "", errors.New("token claims are incomplete")
	}
	if !tok.ExpiresAt.After(tok.IssuedAt) {
		return "", errors.New("token expiry must be after issuance")
	}

	cl := claims{
		CouponID:    tok.CouponID,
		OrderID:     tok.OrderID,
		IssuedAtMs:  tok.IssuedAt.UnixMilli(),
		ExpiresAtMs: tok.ExpiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   tok.CustomerID,
			ID:        tok.Nonce,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
	}

	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	jt.Header[keyIDHeader] = key.Version

	signed, err := jt.SignedString(key.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	tok.KeyVersion = key.Version
	return signed, nil
}

// Verify トークンを検証してクレームを返す
// 判定順: 構造 → 鍵バージョン → 署名 → 有効期間
func (c *Codec) Verify(signed string) (*redemption.Token, error) {
	now := c.now()

	cl := &claims{}
	jt, err := c.parser.ParseWithClaims(signed, cl, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header[keyIDHeader].(string)
		if !ok || kid == "" {
			return nil, redemption.ErrTokenMalformed
		}
		secret, err := c.keys.SecretFor(kid, now)
		if err != nil {
			return nil, redemption.ErrUnknownKey
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if cl.CouponID == "" || cl.Subject == "" || cl.ID == "" || cl.IssuedAtMs <= 0 || cl.ExpiresAtMs <= cl.IssuedAtMs {
		return nil, redemption.ErrTokenMalformed
	}
	if c.issuer != "" && cl.Issuer != c.issuer {
		return nil, redemption.ErrTokenMalformed
	}

	tok := &redemption.Token{
		CouponID:   cl.CouponID,
		CustomerID: cl.Subject,
		OrderID:    cl.OrderID,
		IssuedAt:   time.UnixMilli(cl.IssuedAtMs),
		ExpiresAt:  time.UnixMilli(cl.ExpiresAtMs),
		Nonce:      cl.ID,
		KeyVersion: jt.Header[keyIDHeader].(string),
	}

	if now.After(tok.ExpiresAt) {
		return tok, redemption.ErrTokenExpired
	}
	if now.Before(tok.IssuedAt.Add(-c.skew)) {
		return tok, redemption.ErrTokenNotYetValid
	}
	return tok, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, redemption.ErrUnknownKey):
		return redemption.ErrUnknownKey
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// 許可されていないアルゴリズム（none等）もここに含まれる
		return redemption.ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", redemption.ErrTokenMalformed, err)
	}
}
