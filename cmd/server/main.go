package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapp "redemption-server/internal/application/auth"
	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/expiry"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/token"
	grpcserver "redemption-server/internal/presentation/grpc"
	"redemption-server/internal/presentation/rest"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(ctx, &cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(ctx, &cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("redemption-server")
	logger := otelinfra.NewLogger(tracer).WithLevel(otelinfra.ParseLogLevel(cfg.LogLevel))
	metrics, err := otelinfra.NewMetrics("redemption-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// ストアの初期化
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.close()

	replayCache, closeReplay, err := openReplayCache(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open replay cache: %v", err)
	}
	defer closeReplay()

	// 署名鍵の読み込み
	keys, reloadKeys, err := loadKeyRing(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to load signing keys: %v", err)
	}

	codec := token.NewCodec(keys, cfg.Token.Issuer, cfg.Token.ClockSkew)
	authenticator := auth.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)

	// アプリケーションサービスの初期化
	tokenService := token_issuance.NewTokenIssuanceApplicationService(
		st.coupons,
		codec,
		cfg.Token.TTL,
		token.NewNonce,
		logger,
		metrics,
	)

	redemptionService := coupon_redemption.NewRedemptionApplicationService(
		st.coupons,
		st.staff,
		st.audit,
		codec,
		replayCache,
		st.txManager,
		logger,
		metrics,
	)

	authService := authapp.NewAuthApplicationService(
		authenticator,
		st.staff,
		cfg.JWT.Expiration,
		logger,
	)

	sweeper := expiry.NewSweeper(st.coupons, cfg.Expiry.Interval, cfg.Expiry.BatchSize, logger, metrics)
	if cfg.Expiry.Enabled {
		go sweeper.Run(ctx)
	}

	// REST APIルーターの初期化
	router, err := rest.NewRouter(cfg, logger, metrics, rest.Dependencies{
		Authenticator:     authenticator,
		AuthService:       authService,
		TokenService:      tokenService,
		RedemptionService: redemptionService,
		Sweeper:           sweeper,
		Keys:              keys,
		ReloadKeys:        reloadKeys,
		HealthCheck:       st.healthCheck,
	})
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// gRPCサーバーの初期化
	grpcSrv, err := grpcserver.NewServer(cfg, logger, grpcserver.Dependencies{
		Authenticator:     authenticator,
		TokenService:      tokenService,
		RedemptionService: redemptionService,
		Sweeper:           sweeper,
		Keys:              keys,
	})
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// SIGHUPで署名鍵を再読み込み
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if reloadKeys == nil {
				logger.Warn(ctx, "Signing keys are not file backed, ignoring SIGHUP", nil)
				continue
			}
			if err := reloadKeys(ctx); err != nil {
				logger.Error(ctx, "Failed to reload signing keys", err, nil)
			}
		}
	}()

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		logger.Info(ctx, "REST API server starting", map[string]interface{}{
			"address": address,
		})
		if err := router.Start(address); err != nil {
			logger.Error(ctx, "REST API server error", err, nil)
		}
	}()

	// gRPCサーバーを別ゴルーチンで起動
	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Error(ctx, "gRPC server error", err, nil)
		}
	}()

	// シグナルを待機
	<-quit
	logger.Info(ctx, "Shutting down servers", nil)
	signal.Stop(hup)
	cancel()

	// グレースフルシャットダウン
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// REST APIサーバーのシャットダウン
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error shutting down REST API server", err, nil)
	}

	// gRPCサーバーのシャットダウン
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error shutting down gRPC server", err, nil)
	}

	logger.Info(shutdownCtx, "Servers stopped", nil)
}
