package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"redemption-server/internal/domain/signing"

	"gopkg.in/yaml.v3"
)

// File 鍵ファイルのYAML表現
//
//	current: v2
//	keys:
//	  - version: v1
//	    secret: <base64>
//	    retire_at: 2026-03-01T10:00:00Z
//	  - version: v2
//	    secret: <base64>
type File struct {
	Current string     `yaml:"current"`
	Keys    []KeyEntry `yaml:"keys"`
}

// KeyEntry 鍵ファイル内の1鍵
type KeyEntry struct {
	Version  string     `yaml:"version"`
	Secret   string     `yaml:"secret"`
	RetireAt *time.Time `yaml:"retire_at,omitempty"`
}

// Load 鍵ファイルを読み込む
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if f.Current == "" {
		return nil, errors.New("key file has no current version")
	}
	return &f, nil
}

// Save 鍵ファイルを書き込む（一時ファイル経由で置き換える）
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode key file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".keyring-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close key file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// SigningKeys 鍵ファイルの内容をドメインの鍵に変換する
func (f *File) SigningKeys() ([]signing.Key, error) {
	keys := make([]signing.Key, 0, len(f.Keys))
	for _, e := range f.Keys {
		secret, err := base64.StdEncoding.DecodeString(e.Secret)
		if err != nil {
			return nil, fmt.Errorf("invalid secret for key %s: %w", e.Version, err)
		}
		keys = append(keys, signing.Key{Version: e.Version, Secret: secret, RetiredAt: e.RetireAt})
	}
	return keys, nil
}

// Apply 鍵ファイルの内容でKeyRingを置き換える
func (f *File) Apply(kr *signing.KeyRing) error {
	keys, err := f.SigningKeys()
	if err != nil {
		return err
	}
	return kr.Replace(keys, f.Current)
}

// NewKeyRing 鍵ファイルからKeyRingを作成
func (f *File) NewKeyRing() (*signing.KeyRing, error) {
	keys, err := f.SigningKeys()
	if err != nil {
		return nil, err
	}
	return signing.NewKeyRing(keys, f.Current)
}

// Rotate 新しい鍵を現在の鍵として追加し、旧現在鍵に退役日時を設定する
// 退役日時を過ぎた鍵はファイルから取り除く
func (f *File) Rotate(version string, secret []byte, now time.Time, grace time.Duration) error {
	for _, e := range f.Keys {
		if e.Version == version {
			return fmt.Errorf("%w: %s", signing.ErrDuplicateVersion, version)
		}
	}

	kept := make([]KeyEntry, 0, len(f.Keys)+1)
	for _, e := range f.Keys {
		if e.RetireAt != nil && !now.Before(*e.RetireAt) {
			continue
		}
		if e.Version == f.Current && e.RetireAt == nil {
			retireAt := now.Add(grace).UTC()
			e.RetireAt = &retireAt
		}
		kept = append(kept, e)
	}
	kept = append(kept, KeyEntry{Version: version, Secret: base64.StdEncoding.EncodeToString(secret)})

	f.Keys = kept
	f.Current = version
	return nil
}

// GenerateSecret 新しい署名用シークレットを生成
func GenerateSecret() ([]byte, error) {
	b := make([]byte, signing.MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return b, nil
}
