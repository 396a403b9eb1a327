package signing

import "errors"

var (
	// ErrKeyNotFound 鍵バージョンが保持セットに存在しない（または退役済み）エラー
	ErrKeyNotFound = errors.New("signing key not found")
	// ErrNoCurrentKey 現在の鍵が設定されていないエラー
	ErrNoCurrentKey = errors.New("no current signing key")
	// ErrDuplicateVersion 鍵バージョン重複エラー
	ErrDuplicateVersion = errors.New("duplicate signing key version")
	// ErrWeakSecret 鍵長不足エラー
	ErrWeakSecret = errors.New("signing secret too short")
)
