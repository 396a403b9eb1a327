package main

import (
	"context"
	"fmt"
	"time"

	"redemption-server/internal/domain/coupon"
	"redemption-server/internal/domain/redemption"
	"redemption-server/internal/domain/signing"
	"redemption-server/internal/infrastructure/config"
	"redemption-server/internal/infrastructure/keyring"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/bolt"
	"redemption-server/internal/infrastructure/persistence/memory"
	"redemption-server/internal/infrastructure/persistence/mysql"
	"redemption-server/internal/infrastructure/replay"
	"redemption-server/internal/presentation/rest"
	"redemption-server/internal/presentation/rest/handler"
)

// stores 永続化層の依存一式
type stores struct {
	coupons     coupon.CouponRepository
	staff       coupon.StaffDirectory
	audit       redemption.AuditRepository
	txManager   redemption.TransactionManager
	healthCheck rest.HealthCheckFunc
	closers     []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStores ストレージドライバと監査バックエンドの設定に従ってストアを開く
func openStores(ctx context.Context, cfg *config.Config, logger *otelinfra.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err := mysql.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		st.coupons = mysql.NewCouponRepository(db)
		st.staff = mysql.NewStaffRepository(db)
		st.audit = mysql.NewAuditRepository(db)
		st.txManager = mysql.NewTransactionManager(db)
		st.healthCheck = db.HealthCheck
	case config.StorageMemory:
		coupons := memory.NewCouponRepository()
		staff := memory.NewStaffDirectory()
		if cfg.Storage.SeedFile != "" {
			n, err := memory.LoadSeed(ctx, cfg.Storage.SeedFile, coupons, staff)
			if err != nil {
				return nil, err
			}
			logger.Info(ctx, "Seed data loaded", map[string]interface{}{
				"path":    cfg.Storage.SeedFile,
				"coupons": n,
			})
		}
		st.coupons = coupons
		st.staff = staff
		st.audit = memory.NewAuditRepository()
		st.txManager = memory.NewTransactionManager()
		logger.Warn(ctx, "Using in-memory storage, data is lost on restart", nil)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}

	if cfg.Audit.Backend == config.AuditBackendBolt {
		auditRepo, err := bolt.NewAuditRepository(cfg.Audit.BoltPath)
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, auditRepo.Close)
		st.audit = auditRepo
	}

	return st, nil
}

// openReplayCache リプレイキャッシュを開く
// Redisが無効な場合はプロセス内キャッシュを使う
func openReplayCache(ctx context.Context, cfg *config.Config) (redemption.ReplayCache, func(), error) {
	if !cfg.Redis.Enabled {
		return replay.NewMemoryCache(), func() {}, nil
	}
	client, err := replay.NewRedisClient(ctx, cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return replay.NewRedisCache(client), func() { _ = client.Close() }, nil
}

// loadKeyRing 署名鍵を読み込む
// 鍵ファイルが指定された場合は再読み込み関数も返す
func loadKeyRing(cfg *config.Config, logger *otelinfra.Logger) (*signing.KeyRing, handler.KeyReloader, error) {
	if cfg.Signing.KeysFile == "" {
		kr, err := signing.NewKeyRing([]signing.Key{{
			Version: cfg.Signing.KeyVersion,
			Secret:  []byte(cfg.Signing.KeySecret),
		}}, cfg.Signing.KeyVersion)
		if err != nil {
			return nil, nil, err
		}
		return kr, nil, nil
	}

	f, err := keyring.Load(cfg.Signing.KeysFile)
	if err != nil {
		return nil, nil, err
	}
	kr, err := f.NewKeyRing()
	if err != nil {
		return nil, nil, err
	}

	reload := func(ctx context.Context) error {
		f, err := keyring.Load(cfg.Signing.KeysFile)
		if err != nil {
			return err
		}
		if err := f.Apply(kr); err != nil {
			return err
		}
		logger.Info(ctx, "Signing keys reloaded", map[string]interface{}{
			"current":     kr.CurrentVersion(),
			"reloaded_at": time.Now().UTC(),
		})
		return nil
	}
	return kr, reload, nil
}
