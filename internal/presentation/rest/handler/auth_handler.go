package handler

import (
	"errors"
	"net/http"

	authapp "redemption-server/internal/application/auth"

	"github.com/labstack/echo/v4"
)

// AuthHandler 認証関連ハンドラー（管理API）
type AuthHandler struct {
	authService *authapp.AuthApplicationService
}

// NewAuthHandler 新しいAuthHandlerを作成
func NewAuthHandler(authService *authapp.AuthApplicationService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// GenerateToken トークン生成ハンドラー
// @Summary ダッシュボード用Bearerトークンを生成
// @Description 顧客またはスタッフのBearerトークンを生成します。スタッフは加盟店への所属を確認します
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param user_id path string true "ユーザーID"
// @Param request body GenerateTokenRequest true "トークン生成リクエスト"
// @Success 200 {object} GenerateTokenResponse "トークン生成成功"
// @Failure 400 {object} middleware.ErrorResponse "不正なリクエスト"
// @Failure 403 {object} middleware.ErrorResponse "加盟店に所属していない"
// @Router /admin/users/{user_id}/issue_token [post]
func (h *AuthHandler) GenerateToken(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	var reqBody GenerateTokenRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.authService.GenerateToken(c.Request().Context(), &authapp.GenerateTokenRequest{
		UserID:     userID,
		Role:       reqBody.Role,
		MerchantID: reqBody.MerchantID,
	})
	if err != nil {
		if errors.Is(err, authapp.ErrInvalidRole) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, GenerateTokenResponse{
		Token:     resp.Token,
		ExpiresIn: int(resp.ExpiresIn),
		TokenType: resp.TokenType,
	})
}
