package expiry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/coupon"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
)

// Sweeper 業務期限を過ぎたACTIVEなクーポンをEXPIREDに遷移させる
// 引き換えと同じCompareAndSetを使うため、同時に引き換えられたクーポンは上書きしない
type Sweeper struct {
	couponRepo coupon.CouponRepository
	interval   time.Duration
	batchSize  int
	now        func() time.Time
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// NewSweeper 新しいSweeperを作成
func NewSweeper(couponRepo coupon.CouponRepository, interval time.Duration, batchSize int, logger *otelinfra.Logger, metrics *otelinfra.Metrics) *Sweeper {
	return &Sweeper{
		couponRepo: couponRepo,
		interval:   interval,
		batchSize:  batchSize,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("expiry-sweeper"),
	}
}

// Run ctxがキャンセルされるまで一定間隔で掃除を実行
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Expiry sweeper started", map[string]interface{}{
		"interval":   s.interval.String(),
		"batch_size": s.batchSize,
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "Expiry sweeper stopped", nil)
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "Expiry sweep failed", err, nil)
			}
		}
	}
}

// SweepOnce 1回分の掃除を実行し、EXPIREDにしたクーポン数を返す
// バッチサイズ分を処理しきった場合は次のバッチを続けて処理する
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "Sweeper.SweepOnce")
	defer span.End()

	now := s.now()
	total := 0
	for {
		coupons, err := s.couponRepo.FindExpiredActive(ctx, now, s.batchSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return total, fmt.Errorf("failed to find expired coupons: %w", err)
		}

		expired := 0
		for _, c := range coupons {
			m, err := c.Expire(now)
			if err != nil {
				continue
			}
			ok, err := s.couponRepo.CompareAndSet(ctx, c.ID(), c.Version(), m)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(otelcodes.Error, err.Error())
				return total, fmt.Errorf("failed to expire coupon %s: %w", c.ID(), err)
			}
			if ok {
				expired++
			}
		}
		total += expired

		// 競合で1件も遷移できなかった場合は同じ結果が返り続けるため打ち切る
		if len(coupons) < s.batchSize || expired == 0 {
			break
		}
	}

	if total > 0 {
		s.metrics.RecordCouponsExpired(ctx, total)
		s.logger.Info(ctx, "Expired coupons swept", map[string]interface{}{
			"count": total,
		})
	}
	span.SetAttributes(attribute.Int("expired_count", total))
	span.SetStatus(otelcodes.Ok, "sweep completed")
	return total, nil
}
