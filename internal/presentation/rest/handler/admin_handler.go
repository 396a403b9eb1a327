package handler

import (
	"context"
	"net/http"
	"sort"

	"redemption-server/internal/application/expiry"
	"redemption-server/internal/domain/signing"

	"github.com/labstack/echo/v4"
)

// KeyReloader 署名鍵を再読み込みする関数
type KeyReloader func(ctx context.Context) error

// AdminHandler 運用者向けハンドラー
type AdminHandler struct {
	sweeper    *expiry.Sweeper
	keys       *signing.KeyRing
	reloadKeys KeyReloader
}

// NewAdminHandler 新しいAdminHandlerを作成
// reloadKeysがnilの場合、鍵の再読み込みは501を返す
func NewAdminHandler(sweeper *expiry.Sweeper, keys *signing.KeyRing, reloadKeys KeyReloader) *AdminHandler {
	return &AdminHandler{
		sweeper:    sweeper,
		keys:       keys,
		reloadKeys: reloadKeys,
	}
}

// Sweep 期限切れクーポンの掃除を即時実行
// @Summary 期限切れクーポンを掃除
// @Description 有効期限を過ぎたACTIVEなクーポンをEXPIREDに遷移させます
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SweepResponse "実行成功"
// @Failure 500 {object} middleware.ErrorResponse "内部エラー"
// @Router /admin/expiry/sweep [post]
func (h *AdminHandler) Sweep(c echo.Context) error {
	n, err := h.sweeper.SweepOnce(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SweepResponse{Expired: n})
}

// ReloadKeys 署名鍵ファイルを再読み込み
// @Summary 署名鍵を再読み込み
// @Description 鍵ファイルを再読み込みし、読み込まれた鍵の一覧を返します
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} KeyReloadResponse "再読み込み成功"
// @Failure 501 {object} middleware.ErrorResponse "鍵ファイル未設定"
// @Router /admin/keys/reload [post]
func (h *AdminHandler) ReloadKeys(c echo.Context) error {
	if h.reloadKeys == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "signing keys file is not configured")
	}
	if err := h.reloadKeys(c.Request().Context()); err != nil {
		return err
	}
	return h.ListKeys(c)
}

// ListKeys 署名鍵一覧
// @Summary 署名鍵の一覧を取得
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} KeyReloadResponse "取得成功"
// @Router /admin/keys [get]
func (h *AdminHandler) ListKeys(c echo.Context) error {
	current := h.keys.CurrentVersion()
	resp := KeyReloadResponse{CurrentVersion: current}
	keys := h.keys.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Version < keys[j].Version })
	for _, k := range keys {
		resp.Keys = append(resp.Keys, &KeyResponse{
			Version:   k.Version,
			Current:   k.Version == current,
			RetiredAt: k.RetiredAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
