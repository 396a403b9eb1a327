package token

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"redemption-server/internal/domain/redemption"
	"redemption-server/internal/domain/signing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func newKeyRing(t *testing.T) *signing.KeyRing {
	t.Helper()
	kr, err := signing.NewKeyRing([]signing.Key{
		{Version: "v1", Secret: bytes.Repeat([]byte("k"), signing.MinSecretLength)},
	}, "v1")
	require.NoError(t, err)
	return kr
}

func newToken(t *testing.T, issuedAt time.Time, ttl time.Duration) *redemption.Token {
	t.Helper()
	nonce, err := NewNonce()
	require.NoError(t, err)
	return &redemption.Token{
		CouponID:   "coupon-1",
		CustomerID: "customer-1",
		OrderID:    "order-1",
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
		Nonce:      nonce,
	}
}

func TestCodec_SignVerify(t *testing.T) {
	clock := &fakeClock{now: baseTime}
	codec := NewCodec(newKeyRing(t), "redemption-server", 5*time.Second, WithClock(clock.Now))

	tok := newToken(t, baseTime, 60*time.Second)
	signed, err := codec.Sign(tok)
	require.NoError(t, err)
	assert.Equal(t, "v1", tok.KeyVersion)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{name: "正常系: 発行直後", at: baseTime},
		{name: "正常系: 有効期限ちょうど", at: baseTime.Add(60 * time.Second)},
		{name: "正常系: 許容スキュー内の未来発行", at: baseTime.Add(-5 * time.Second)},
		{name: "異常系: 有効期限を1ms超過", at: baseTime.Add(60*time.Second + time.Millisecond), wantErr: redemption.ErrTokenExpired},
		{name: "異常系: 許容スキューを超えた未来発行", at: baseTime.Add(-5*time.Second - time.Millisecond), wantErr: redemption.ErrTokenNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.now = tt.at
			got, err := codec.Verify(signed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				// 有効期間の拒否でもクレームは返る
				require.NotNil(t, got)
				assert.Equal(t, tok.Nonce, got.Nonce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tok.CouponID, got.CouponID)
			assert.Equal(t, tok.CustomerID, got.CustomerID)
			assert.Equal(t, tok.OrderID, got.OrderID)
			assert.Equal(t, tok.Nonce, got.Nonce)
			assert.Equal(t, "v1", got.KeyVersion)
			assert.True(t, tok.IssuedAt.Equal(got.IssuedAt))
			assert.True(t, tok.ExpiresAt.Equal(got.ExpiresAt))
		})
	}
}

func TestCodec_VerifyStructuralFailures(t *testing.T) {
	clock := &fakeClock{now: baseTime}
	kr := newKeyRing(t)
	codec := NewCodec(kr, "redemption-server", 5*time.Second, WithClock(clock.Now))

	signed, err := codec.Sign(newToken(t, baseTime, 60*time.Second))
	require.NoError(t, err)
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	// ペイロードを書き換えたトークン
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	tampered := strings.Replace(string(payload), "coupon-1", "coupon-2", 1)
	tamperedToken := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(tampered)) + "." + parts[2]

	// 他の鍵で署名されたトークン
	otherRing, err := signing.NewKeyRing([]signing.Key{
		{Version: "v9", Secret: bytes.Repeat([]byte("z"), signing.MinSecretLength)},
	}, "v9")
	require.NoError(t, err)
	unknownKeyToken, err := NewCodec(otherRing, "redemption-server", 0).Sign(newToken(t, baseTime, time.Minute))
	require.NoError(t, err)

	// 同じバージョン名で異なる鍵
	sameVersionRing, err := signing.NewKeyRing([]signing.Key{
		{Version: "v1", Secret: bytes.Repeat([]byte("x"), signing.MinSecretLength)},
	}, "v1")
	require.NoError(t, err)
	wrongSecretToken, err := NewCodec(sameVersionRing, "redemption-server", 0).Sign(newToken(t, baseTime, time.Minute))
	require.NoError(t, err)

	// alg=none
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"cid": "coupon-1", "sub": "customer-1", "jti": "n", "iat_ms": baseTime.UnixMilli(), "exp_ms": baseTime.Add(time.Minute).UnixMilli(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// kidなし
	noKid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"cid": "coupon-1"}).
		SignedString(bytes.Repeat([]byte("k"), signing.MinSecretLength))
	require.NoError(t, err)

	// 必須クレーム欠落（正しい鍵で署名）
	missingClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"cid": "coupon-1", "sub": "customer-1"})
	missingClaims.Header["kid"] = "v1"
	missingClaimsToken, err := missingClaims.SignedString(bytes.Repeat([]byte("k"), signing.MinSecretLength))
	require.NoError(t, err)

	// 発行者違い
	wrongIssuerToken, err := NewCodec(kr, "someone-else", 0, WithClock(clock.Now)).Sign(newToken(t, baseTime, time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name    string
		signed  string
		wantErr error
	}{
		{name: "異常系: 空文字", signed: "", wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: JWS形式でない", signed: "not-a-token", wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: 署名欠落", signed: parts[0] + "." + parts[1], wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: kidなし", signed: noKid, wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: 必須クレーム欠落", signed: missingClaimsToken, wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: 発行者違い", signed: wrongIssuerToken, wantErr: redemption.ErrTokenMalformed},
		{name: "異常系: 未知の鍵バージョン", signed: unknownKeyToken, wantErr: redemption.ErrUnknownKey},
		{name: "異常系: ペイロード改ざん", signed: tamperedToken, wantErr: redemption.ErrInvalidSignature},
		{name: "異常系: 異なる鍵で署名", signed: wrongSecretToken, wantErr: redemption.ErrInvalidSignature},
		{name: "異常系: alg=none", signed: noneToken, wantErr: redemption.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Verify(tt.signed)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestCodec_KeyRotation(t *testing.T) {
	clock := &fakeClock{now: baseTime}
	kr := newKeyRing(t)
	codec := NewCodec(kr, "", 0, WithClock(clock.Now))

	oldSigned, err := codec.Sign(newToken(t, baseTime, 10*time.Minute))
	require.NoError(t, err)

	require.NoError(t, kr.Rotate("v2", bytes.Repeat([]byte("n"), signing.MinSecretLength), baseTime, 2*time.Minute))

	newTok := newToken(t, baseTime, 10*time.Minute)
	newSigned, err := codec.Sign(newTok)
	require.NoError(t, err)
	assert.Equal(t, "v2", newTok.KeyVersion)

	// 猶予期間中は旧鍵・新鍵どちらのトークンも有効
	clock.now = baseTime.Add(time.Minute)
	_, err = codec.Verify(oldSigned)
	assert.NoError(t, err)
	_, err = codec.Verify(newSigned)
	assert.NoError(t, err)

	// 旧鍵の退役後は未知の鍵として拒否
	clock.now = baseTime.Add(3 * time.Minute)
	_, err = codec.Verify(oldSigned)
	assert.ErrorIs(t, err, redemption.ErrUnknownKey)
	_, err = codec.Verify(newSigned)
	assert.NoError(t, err)
}

func TestCodec_SignRejectsIncompleteToken(t *testing.T) {
	codec := NewCodec(newKeyRing(t), "", 0)

	_, err := codec.Sign(&redemption.Token{CouponID: "c", CustomerID: "u", IssuedAt: baseTime, ExpiresAt: baseTime.Add(time.Minute)})
	assert.Error(t, err)

	_, err = codec.Sign(&redemption.Token{CouponID: "c", CustomerID: "u", Nonce: "n", IssuedAt: baseTime, ExpiresAt: baseTime})
	assert.Error(t, err)
}

func TestNewNonce(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n, err := NewNonce()
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(n)
		require.NoError(t, err)
		assert.Len(t, raw, NonceBytes)
		_, dup := seen[n]
		assert.False(t, dup)
		seen[n] = struct{}{}
	}
}
