package signing

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MinSecretLength HMAC-SHA256用の最小鍵長（バイト）
const MinSecretLength = 32

// Key バージョン付きの署名鍵
type Key struct {
	Version   string
	Secret    []byte
	RetiredAt *time.Time // nilの場合は無期限に保持
}

// ActiveAt 指定時刻に検証用として有効かどうかを返す
func (k Key) ActiveAt(now time.Time) bool {
	return k.RetiredAt == nil || now.Before(*k.RetiredAt)
}

// snapshot 鍵セットの不変スナップショット
type snapshot struct {
	current string
	keys    map[string]Key
}

// KeyRing バージョン付き署名鍵のセット
// 読み取りはロックフリー（スナップショットのアトミック差し替え）で、
// ローテーションは過去バージョンを保持したまま追加する
type KeyRing struct {
	state atomic.Pointer[snapshot]
	mu    sync.Mutex // 書き込み同士の直列化
}

// NewKeyRing 新しいKeyRingを作成
func NewKeyRing(keys []Key, current string) (*KeyRing, error) {
	kr := &KeyRing{}
	if err := kr.Replace(keys, current); err != nil {
		return nil, err
	}
	return kr, nil
}

// Replace 鍵セット全体を差し替える（鍵ファイルの再読み込み用）
func (kr *KeyRing) Replace(keys []Key, current string) error {
	next := &snapshot{current: current, keys: make(map[string]Key, len(keys))}
	for _, k := range keys {
		if k.Version == "" {
			return fmt.Errorf("signing key version is required")
		}
		if len(k.Secret) < MinSecretLength {
			return fmt.Errorf("%w: version %s", ErrWeakSecret, k.Version)
		}
		if _, dup := next.keys[k.Version]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateVersion, k.Version)
		}
		next.keys[k.Version] = k
	}
	cur, ok := next.keys[current]
	if !ok {
		return ErrNoCurrentKey
	}
	if cur.RetiredAt != nil {
		return fmt.Errorf("current key %s must not be retired", current)
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.state.Store(next)
	return nil
}

// Rotate 新しい鍵を現在の鍵として追加し、旧現在鍵を grace 経過後に退役させる
func (kr *KeyRing) Rotate(version string, secret []byte, now time.Time, grace time.Duration) error {
	if len(secret) < MinSecretLength {
		return ErrWeakSecret
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()

	prev := kr.state.Load()
	if _, dup := prev.keys[version]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateVersion, version)
	}

	next := &snapshot{current: version, keys: make(map[string]Key, len(prev.keys)+1)}
	for v, k := range prev.keys {
		next.keys[v] = k
	}
	if old, ok := next.keys[prev.current]; ok && old.RetiredAt == nil {
		retireAt := now.Add(grace)
		old.RetiredAt = &retireAt
		next.keys[prev.current] = old
	}
	next.keys[version] = Key{Version: version, Secret: append([]byte(nil), secret...)}

	kr.state.Store(next)
	return nil
}

// CurrentVersion 現在の鍵バージョンを返す
func (kr *KeyRing) CurrentVersion() string {
	return kr.state.Load().current
}

// Current 署名に使う現在の鍵を返す
func (kr *KeyRing) Current() (Key, error) {
	s := kr.state.Load()
	k, ok := s.keys[s.current]
	if !ok {
		return Key{}, ErrNoCurrentKey
	}
	return k, nil
}

// SecretFor 指定バージョンの検証用シークレットを返す
// 保持セット外または退役済みの場合はErrKeyNotFound
func (kr *KeyRing) SecretFor(version string, now time.Time) ([]byte, error) {
	k, ok := kr.state.Load().keys[version]
	if !ok || !k.ActiveAt(now) {
		return nil, ErrKeyNotFound
	}
	return k.Secret, nil
}

// Keys 保持している全ての鍵を返す
func (kr *KeyRing) Keys() []Key {
	s := kr.state.Load()
	keys := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		keys = append(keys, k)
	}
	return keys
}
