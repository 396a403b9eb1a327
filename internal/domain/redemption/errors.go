package redemption

import "errors"

var (
	// ErrTokenMalformed トークンの構造が不正なエラー
	ErrTokenMalformed = errors.New("token malformed")
	// ErrUnknownKey トークンの鍵バージョンが不明または退役済みのエラー
	ErrUnknownKey = errors.New("unknown signing key version")
	// ErrInvalidSignature 署名不一致エラー
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired トークン有効期限切れエラー
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid トークン有効期間開始前エラー
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrReplayedToken 消費済みnonceの再提示エラー
	ErrReplayedToken = errors.New("token already presented")
	// ErrRecordNotFound 監査レコードが見つからないエラー
	ErrRecordNotFound = errors.New("redemption record not found")
)
