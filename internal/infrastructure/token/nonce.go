package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NonceBytes nonceのバイト長（192bit）
const NonceBytes = 24

// NewNonce 暗号論的乱数からnonceを生成
func NewNonce() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
