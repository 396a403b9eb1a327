package handler

import (
	"net/http"
	"time"

	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/infrastructure/auth"

	"github.com/labstack/echo/v4"
)

// TokenHandler 引き換えトークン発行ハンドラー
type TokenHandler struct {
	tokenService *token_issuance.TokenIssuanceApplicationService
	now          func() time.Time
}

// NewTokenHandler 新しいTokenHandlerを作成
func NewTokenHandler(tokenService *token_issuance.TokenIssuanceApplicationService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
		now:          time.Now,
	}
}

// IssueToken 引き換えトークン発行
// @Summary 引き換えトークンを発行
// @Description 認証済み顧客が所有するACTIVEなクーポンの短命トークンを発行します。何度でも再発行できます
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "クーポンID"
// @Success 200 {object} IssueTokenResponse "発行成功"
// @Failure 401 {object} middleware.ErrorResponse "認証エラー"
// @Failure 403 {object} middleware.ErrorResponse "発行対象外"
// @Failure 404 {object} middleware.ErrorResponse "クーポンが見つからない"
// @Router /api/v1/coupons/{id}/redemption-token [post]
func (h *TokenHandler) IssueToken(c echo.Context) error {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	couponID := c.Param("id")
	if couponID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "coupon id is required")
	}

	resp, err := h.tokenService.Issue(c.Request().Context(), &token_issuance.IssueTokenRequest{
		CouponID:   couponID,
		CustomerID: p.UserID,
	})
	if err != nil {
		return err
	}

	expiresIn := int(resp.ExpiresAt.Sub(h.now()).Round(time.Second).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return c.JSON(http.StatusOK, IssueTokenResponse{
		Token:      resp.Token,
		ExpiresAt:  resp.ExpiresAt,
		ExpiresIn:  expiresIn,
		KeyVersion: resp.KeyVersion,
	})
}
