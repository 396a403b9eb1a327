package handler

import (
	"net/http"
	"strconv"

	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/domain/redemption"
	"redemption-server/internal/infrastructure/auth"

	"github.com/labstack/echo/v4"
)

// outcomeStatus 結果コードとHTTPステータスの対応
var outcomeStatus = map[redemption.Outcome]int{
	redemption.OutcomeSuccess:          http.StatusOK,
	redemption.OutcomeMalformed:        http.StatusBadRequest,
	redemption.OutcomeUnknownKey:       http.StatusBadRequest,
	redemption.OutcomeInvalidSignature: http.StatusBadRequest,
	redemption.OutcomeTokenExpired:     http.StatusUnprocessableEntity,
	redemption.OutcomeNotYetValid:      http.StatusUnprocessableEntity,
	redemption.OutcomeAlreadyUsed:      http.StatusConflict,
	redemption.OutcomeReplayedToken:    http.StatusConflict,
	redemption.OutcomeWrongMerchant:    http.StatusForbidden,
	redemption.OutcomeCouponExpired:    http.StatusGone,
	redemption.OutcomeCouponNotFound:   http.StatusNotFound,
}

// StatusFor 結果コードに対応するHTTPステータスを返す
func StatusFor(o redemption.Outcome) int {
	if status, ok := outcomeStatus[o]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RedemptionHandler スタッフ向け引き換えハンドラー
type RedemptionHandler struct {
	redemptionService *coupon_redemption.RedemptionApplicationService
}

// NewRedemptionHandler 新しいRedemptionHandlerを作成
func NewRedemptionHandler(redemptionService *coupon_redemption.RedemptionApplicationService) *RedemptionHandler {
	return &RedemptionHandler{
		redemptionService: redemptionService,
	}
}

// Validate 引き換えプレビュー
// @Summary 引き換え可否を確認
// @Description トークンを検証しクーポン概要を返します。クーポンの状態は変更せず、監査ログも記録しません
// @Tags redemptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedemptionRequest true "引き換えリクエスト"
// @Success 200 {object} RedemptionResponse "引き換え可能"
// @Failure 400 {object} RedemptionResponse "トークン不正"
// @Failure 409 {object} RedemptionResponse "使用済み"
// @Failure 422 {object} RedemptionResponse "トークン期限外"
// @Router /api/v1/redemptions/validate [post]
func (h *RedemptionHandler) Validate(c echo.Context) error {
	req, err := h.bindRequest(c)
	if err != nil {
		return err
	}

	resp, err := h.redemptionService.Validate(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(StatusFor(resp.Outcome), toRedemptionResponse(resp))
}

// Process 引き換え確定
// @Summary クーポンを引き換える
// @Description トークンを検証しクーポンを使用済みにします。すべての試行は監査ログに記録されます
// @Tags redemptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedemptionRequest true "引き換えリクエスト"
// @Success 200 {object} RedemptionResponse "引き換え成功"
// @Failure 400 {object} RedemptionResponse "トークン不正"
// @Failure 403 {object} RedemptionResponse "別の加盟店のクーポン"
// @Failure 404 {object} RedemptionResponse "クーポンが見つからない"
// @Failure 409 {object} RedemptionResponse "使用済みまたはトークン再利用"
// @Failure 410 {object} RedemptionResponse "クーポン期限切れ"
// @Failure 422 {object} RedemptionResponse "トークン期限外"
// @Router /api/v1/redemptions/process [post]
func (h *RedemptionHandler) Process(c echo.Context) error {
	req, err := h.bindRequest(c)
	if err != nil {
		return err
	}

	resp, err := h.redemptionService.Redeem(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(StatusFor(resp.Outcome), toRedemptionResponse(resp))
}

// ListAudit 監査ログ取得
// @Summary クーポンの監査ログを取得
// @Description 自店舗のクーポンの引き換え試行を新しい順に返します
// @Tags redemptions
// @Produce json
// @Security BearerAuth
// @Param coupon_id query string true "クーポンID"
// @Param limit query int false "取得件数" default(50)
// @Success 200 {object} AuditListResponse "取得成功"
// @Failure 403 {object} middleware.ErrorResponse "別の加盟店のクーポン"
// @Failure 404 {object} middleware.ErrorResponse "クーポンが見つからない"
// @Router /api/v1/redemptions/audit [get]
func (h *RedemptionHandler) ListAudit(c echo.Context) error {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	couponID := c.QueryParam("coupon_id")
	if couponID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "coupon_id is required")
	}

	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	resp, err := h.redemptionService.ListAudit(c.Request().Context(), &coupon_redemption.ListAuditRequest{
		CouponID:   couponID,
		StaffID:    p.UserID,
		MerchantID: p.MerchantID,
		Limit:      limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAuditListResponse(resp))
}

// bindRequest リクエストボディと認証主体から引き換えリクエストを組み立てる
// トークンが空でも結果コードで返すため、ここでは拒否しない
func (h *RedemptionHandler) bindRequest(c echo.Context) (*coupon_redemption.RedeemRequest, error) {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var reqBody RedemptionRequest
	if err := c.Bind(&reqBody); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return &coupon_redemption.RedeemRequest{
		Token:      reqBody.Token,
		StaffID:    p.UserID,
		MerchantID: p.MerchantID,
	}, nil
}
