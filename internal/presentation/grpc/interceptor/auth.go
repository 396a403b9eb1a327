package interceptor

import (
	"context"
	"errors"
	"strings"

	"redemption-server/internal/infrastructure/auth"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor Bearerトークン認証インターセプター
// 検証した主体をcontextに設定する
func AuthInterceptor(authenticator *auth.Authenticator, logger *otelinfra.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// メタデータからトークンを取得
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			logger.Warn(ctx, "Missing metadata", nil)
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}

		p, err := authenticator.ParseHeader(header)
		if err != nil {
			logger.Warn(ctx, "Authentication failed", map[string]interface{}{
				"method": info.FullMethod,
				"error":  err.Error(),
			})
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				return nil, status.Error(codes.Unauthenticated, "missing authorization header")
			case errors.Is(err, auth.ErrInvalidHeader):
				return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
			default:
				return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
			}
		}

		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

// ForService 指定サービスのメソッドにのみインターセプターを適用する
func ForService(serviceName string, ic grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	prefix := "/" + serviceName + "/"
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		return ic(ctx, req, info, handler)
	}
}
