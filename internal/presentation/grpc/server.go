package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"redemption-server/internal/application/coupon_redemption"
	"redemption-server/internal/application/expiry"
	"redemption-server/internal/application/token_issuance"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/infrastructure/auth"
	"redemption-server/internal/infrastructure/config"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/presentation/grpc/handler"
	"redemption-server/internal/presentation/grpc/interceptor"
	"redemption-server/internal/presentation/grpc/pb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Dependencies gRPCサーバーが利用するサービス群
type Dependencies struct {
	Authenticator     *auth.Authenticator
	TokenService      *token_issuance.TokenIssuanceApplicationService
	RedemptionService *coupon_redemption.RedemptionApplicationService
	Sweeper           *expiry.Sweeper  // nilの場合は管理サービスを登録しない
	Keys              *signing.KeyRing // nilの場合は管理サービスを登録しない
}

// Server gRPCサーバー
type Server struct {
	server   *grpc.Server
	listener net.Listener
	port     int
	logger   *otelinfra.Logger
}

// NewServer 新しいgRPCサーバーを作成
func NewServer(cfg *config.Config, logger *otelinfra.Logger, deps Dependencies) (*Server, error) {
	address := fmt.Sprintf(":%d", cfg.Server.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return NewServerWithListener(cfg, logger, deps, listener, cfg.Server.GRPCPort)
}

// NewServerWithListener リスナーを指定してgRPCサーバーを作成（テスト用）
func NewServerWithListener(
	cfg *config.Config,
	logger *otelinfra.Logger,
	deps Dependencies,
	listener net.Listener,
	port int,
) (*Server, error) {
	if deps.Authenticator == nil || deps.TokenService == nil || deps.RedemptionService == nil {
		return nil, fmt.Errorf("authenticator, token service and redemption service are required")
	}

	// インターセプターを設定
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptor.ForService(pb.RedemptionServiceName, interceptor.AuthInterceptor(deps.Authenticator, logger)),
			interceptor.ForService(pb.AdminServiceName, interceptor.APIKeyInterceptor(&cfg.AdminAPI, logger)),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAge:      30 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(opts...)

	// ハンドラーを登録
	pb.RegisterRedemptionServiceServer(grpcServer, handler.NewRedemptionHandler(deps.TokenService, deps.RedemptionService))
	if cfg.AdminAPI.Enabled && deps.Sweeper != nil && deps.Keys != nil {
		pb.RegisterAdminServiceServer(grpcServer, handler.NewAdminHandler(deps.Sweeper, deps.Keys))
	}

	// リフレクションを有効化（開発環境用）
	if cfg.IsDevelopment() {
		reflection.Register(grpcServer)
	}

	return &Server{
		server:   grpcServer,
		listener: listener,
		port:     port,
		logger:   logger,
	}, nil
}

// Start サーバーを起動
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "gRPC server starting", map[string]interface{}{
		"port": s.port,
	})
	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop サーバーを停止
func (s *Server) Stop(ctx context.Context) error {
	// グレースフルシャットダウン
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info(ctx, "gRPC server stopped", nil)
		return nil
	case <-ctx.Done():
		// タイムアウトした場合は強制停止
		s.logger.Warn(context.Background(), "gRPC server shutdown timeout, forcing stop", nil)
		s.server.Stop()
		return ctx.Err()
	}
}

// Port サーバーのポート番号を返す
func (s *Server) Port() int {
	return s.port
}
