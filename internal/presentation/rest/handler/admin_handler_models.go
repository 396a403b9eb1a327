package handler

import "time"

// SweepResponse 期限切れ掃除レスポンス
// @Description 期限切れに遷移したクーポン数
type SweepResponse struct {
	Expired int `json:"expired" example:"12"`
}

// KeyResponse 署名鍵情報
// @Description 読み込まれた署名鍵（秘密鍵は含まない）
type KeyResponse struct {
	Version   string     `json:"version" example:"v2"`
	Current   bool       `json:"current" example:"true"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
}

// KeyReloadResponse 署名鍵再読み込みレスポンス
// @Description 再読み込み後の鍵一覧
type KeyReloadResponse struct {
	CurrentVersion string         `json:"current_version" example:"v2"`
	Keys           []*KeyResponse `json:"keys"`
}
