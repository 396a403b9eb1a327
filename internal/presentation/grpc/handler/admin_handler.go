package handler

import (
	"context"
	"sort"
	"time"

	"redemption-server/internal/application/expiry"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/presentation/grpc/pb"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// AdminHandler gRPC運用者向けサービスハンドラー
type AdminHandler struct {
	sweeper *expiry.Sweeper
	keys    *signing.KeyRing
}

var _ pb.AdminServiceServer = (*AdminHandler)(nil)

// NewAdminHandler 新しいAdminHandlerを作成
func NewAdminHandler(sweeper *expiry.Sweeper, keys *signing.KeyRing) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, keys: keys}
}

// SweepExpired 期限切れクーポンの掃除を即時実行
func (h *AdminHandler) SweepExpired(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	n, err := h.sweeper.SweepOnce(ctx)
	if err != nil {
		return nil, handleError(err)
	}
	return structpb.NewStruct(map[string]interface{}{"expired": n})
}

// ListKeys 読み込まれている署名鍵の一覧（秘密鍵は含まない）
func (h *AdminHandler) ListKeys(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	current := h.keys.CurrentVersion()
	keys := h.keys.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Version < keys[j].Version })

	list := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		entry := map[string]interface{}{
			"version": k.Version,
			"current": k.Version == current,
		}
		if k.RetiredAt != nil {
			entry["retired_at"] = k.RetiredAt.UTC().Format(time.RFC3339)
		}
		list = append(list, entry)
	}
	return structpb.NewStruct(map[string]interface{}{
		"current_version": current,
		"keys":            list,
	})
}
