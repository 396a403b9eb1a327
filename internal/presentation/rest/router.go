package rest

import (
	"context"
	"fmt"
	"net/http"

	authapp "redemption-server/internal/application/auth"
	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/expiry"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/presentation/rest/handler"
	restmiddleware "redemption-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HealthCheckFunc 依存サービスの疎通確認
type HealthCheckFunc func(ctx context.Context) error

// Dependencies ルーターが利用するサービス群
type Dependencies struct {
	Authenticator     *auth.Authenticator
	AuthService       *authapp.AuthApplicationService
	TokenService      *token_issuance.TokenIssuanceApplicationService
	RedemptionService *coupon_redemption.RedemptionApplicationService
	Sweeper           *expiry.Sweeper
	Keys              *signing.KeyRing
	ReloadKeys        handler.KeyReloader // nilの場合は鍵の再読み込み不可
	HealthCheck       HealthCheckFunc     // nilの場合は常にok
}

// Router REST APIルーター
type Router struct {
	echo              *echo.Echo
	tokenHandler      *handler.TokenHandler
	redemptionHandler *handler.RedemptionHandler
	authHandler       *handler.AuthHandler
	adminHandler      *handler.AdminHandler
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	deps Dependencies,
) (*Router, error) {
	if deps.Authenticator == nil || deps.TokenService == nil || deps.RedemptionService == nil {
		return nil, fmt.Errorf("authenticator, token service and redemption service are required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// エラーはエラーハンドリングミドルウェアで処理される
	// ミドルウェアより外側で発生したエラー（ルート未定義等）のみここに到達する
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		_ = c.JSON(code, restmiddleware.ErrorResponse{
			Error:   http.StatusText(code),
			Message: http.StatusText(code),
		})
	}

	// ミドルウェアの設定
	setupMiddleware(e, logger, metrics)

	r := &Router{
		echo:              e,
		tokenHandler:      handler.NewTokenHandler(deps.TokenService),
		redemptionHandler: handler.NewRedemptionHandler(deps.RedemptionService),
	}
	if deps.AuthService != nil {
		r.authHandler = handler.NewAuthHandler(deps.AuthService)
	}
	if deps.Sweeper != nil && deps.Keys != nil {
		r.adminHandler = handler.NewAdminHandler(deps.Sweeper, deps.Keys, deps.ReloadKeys)
	}

	// ルーティングの設定
	r.setupRoutes(cfg, logger, deps)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return r, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	// リカバリーミドルウェア
	e.Use(middleware.Recover())

	// CORS設定
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // 本番環境では適切に設定
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-API-Key"},
	}))

	// リクエストIDの設定
	e.Use(middleware.RequestID())

	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// トレーシングミドルウェア
	e.Use(restmiddleware.TracingMiddleware())

	// ログミドルウェア
	e.Use(restmiddleware.LoggingMiddleware(logger))

	e.Use(restmiddleware.MetricsMiddleware(metrics))

	// エラーハンドリングミドルウェア
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func (r *Router) setupRoutes(cfg *config.Config, logger *otelinfra.Logger, deps Dependencies) {
	e := r.echo

	// API v1グループ（認証必須）
	api := e.Group("/api/v1", restmiddleware.AuthMiddleware(deps.Authenticator, logger))

	// 顧客向けエンドポイント
	customers := api.Group("", restmiddleware.RequireRole(auth.RoleCustomer, logger))
	customers.POST("/coupons/:id/redemption-token", r.tokenHandler.IssueToken)

	// スタッフ向けエンドポイント
	staff := api.Group("/redemptions", restmiddleware.RequireRole(auth.RoleStaff, logger))
	staff.POST("/validate", r.redemptionHandler.Validate)
	staff.POST("/process", r.redemptionHandler.Process)
	staff.GET("/audit", r.redemptionHandler.ListAudit)

	// 管理API（APIキー認証）
	if cfg.AdminAPI.Enabled {
		admin := e.Group("/admin", restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger))
		if r.authHandler != nil {
			admin.POST("/users/:user_id/issue_token", r.authHandler.GenerateToken)
		}
		if r.adminHandler != nil {
			admin.POST("/expiry/sweep", r.adminHandler.Sweep)
			admin.GET("/keys", r.adminHandler.ListKeys)
			admin.POST("/keys/reload", r.adminHandler.ReloadKeys)
		}
	}

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request().Context()); err != nil {
				logger.Error(c.Request().Context(), "Health check failed", err, nil)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler HTTPハンドラーを返す（テスト用）
func (r *Router) Handler() http.Handler {
	return r.echo
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown 処理中のリクエストを待ってサーバーを停止
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}
