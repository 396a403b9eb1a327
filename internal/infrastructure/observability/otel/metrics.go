package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 引き換え結果（outcome, category別）
	RedemptionOutcomes metric.Int64Counter

	// 発行したトークン数
	TokensIssued metric.Int64Counter

	// リプレイ検出数
	ReplayDetected metric.Int64Counter

	// リプレイキャッシュ障害数
	ReplayCacheErrors metric.Int64Counter

	// 期限切れに遷移したクーポン数
	CouponsExpired metric.Int64Counter

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー数
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.RedemptionOutcomes, "redemption_outcomes_total", "Total number of redemption outcomes"},
		{&m.TokensIssued, "tokens_issued_total", "Total number of redemption tokens issued"},
		{&m.ReplayDetected, "replay_detected_total", "Total number of replayed tokens detected"},
		{&m.ReplayCacheErrors, "replay_cache_errors_total", "Total number of replay cache failures"},
		{&m.CouponsExpired, "coupons_expired_total", "Total number of coupons moved to EXPIRED"},
		{&m.RequestCount, "requests_total", "Total number of requests"},
		{&m.ErrorCount, "errors_total", "Total number of errors"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	m.ResponseTime = responseTime

	return m, nil
}

// RecordOutcome 引き換え結果を記録
func (m *Metrics) RecordOutcome(ctx context.Context, operation, outcome, category string) {
	m.RedemptionOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
			attribute.String("category", category),
		),
	)
}

// RecordTokenIssued トークン発行を記録
func (m *Metrics) RecordTokenIssued(ctx context.Context, keyVersion string) {
	m.TokensIssued.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("key_version", keyVersion),
		),
	)
}

// RecordReplay リプレイ検出を記録
func (m *Metrics) RecordReplay(ctx context.Context) {
	m.ReplayDetected.Add(ctx, 1)
}

// RecordReplayCacheError リプレイキャッシュ障害を記録
func (m *Metrics) RecordReplayCacheError(ctx context.Context) {
	m.ReplayCacheErrors.Add(ctx, 1)
}

// RecordCouponsExpired 期限切れ遷移を記録
func (m *Metrics) RecordCouponsExpired(ctx context.Context, n int) {
	m.CouponsExpired.Add(ctx, int64(n))
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
