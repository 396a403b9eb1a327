package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/redemption"
)

// AuditRepository MySQL実装のAuditRepository（追記のみ）
type AuditRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewAuditRepository 新しいAuditRepositoryを作成
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{
		db:     db,
		tracer: otel.Tracer("audit-repository"),
	}
}

// Append 監査レコードを追記
func (r *AuditRepository) Append(ctx context.Context, rec *redemption.Record) error {
	ctx, span := r.tracer.Start(ctx, "AuditRepository.Append")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.record_id", rec.ID()),
		attribute.String("db.coupon_id", rec.CouponID()),
		attribute.String("db.outcome", rec.Outcome().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "redemption_records"),
	)

	query := `
		INSERT INTO redemption_records (
			id, coupon_id, staff_id, merchant_id, outcome, token_nonce, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		rec.ID(),
		nullString(rec.CouponID()),
		rec.StaffID(),
		rec.MerchantID(),
		rec.Outcome().String(),
		nullString(rec.TokenNonce()),
		rec.Timestamp(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to append redemption record: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "redemption record appended")
	return nil
}

// FindByCouponID クーポンの監査レコードを新しい順に取得
func (r *AuditRepository) FindByCouponID(ctx context.Context, couponID string, limit int) ([]*redemption.Record, error) {
	ctx, span := r.tracer.Start(ctx, "AuditRepository.FindByCouponID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.coupon_id", couponID),
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "redemption_records"),
	)

	query := `
		SELECT id, coupon_id, staff_id, merchant_id, outcome, token_nonce, created_at
		FROM redemption_records
		WHERE coupon_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, couponID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query redemption records: %w", err)
	}
	defer rows.Close()

	var records []*redemption.Record
	for rows.Next() {
		var (
			id, staffID, merchantID, outcome string
			cid, nonce                       sql.NullString
			createdAt                        time.Time
		)
		if err := rows.Scan(&id, &cid, &staffID, &merchantID, &outcome, &nonce, &createdAt); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan redemption record: %w", err)
		}
		o, err := redemption.NewOutcome(outcome)
		if err != nil {
			return nil, fmt.Errorf("invalid outcome: %w", err)
		}
		rec, err := redemption.NewRecord(id, cid.String, staffID, merchantID, o, nonce.String, createdAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate redemption records: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(records)))
	span.SetStatus(otelcodes.Ok, "redemption records found")
	return records, nil
}
