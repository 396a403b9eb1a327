package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/coupon"
)

const couponColumns = `
	id, order_id, deal_id, merchant_id, customer_id, deal_title, face_value,
	status, expires_at, used_at, used_by_staff_id, version, created_at, updated_at
`

// CouponRepository MySQL実装のCouponRepository
type CouponRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewCouponRepository 新しいCouponRepositoryを作成
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{
		db:     db,
		tracer: otel.Tracer("coupon-repository"),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*coupon.Coupon, error) {
	var (
		a             coupon.Attributes
		status        string
		dealTitle     sql.NullString
		usedAt        sql.NullTime
		usedByStaffID sql.NullString
	)
	if err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.DealID,
		&a.MerchantID,
		&a.CustomerID,
		&dealTitle,
		&a.FaceValue,
		&status,
		&a.ExpiresAt,
		&usedAt,
		&usedByStaffID,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	cs, err := coupon.NewCouponStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid coupon status: %w", err)
	}
	a.Status = cs
	a.DealTitle = dealTitle.String
	a.UsedByStaffID = usedByStaffID.String
	if usedAt.Valid {
		t := usedAt.Time
		a.UsedAt = &t
	}

	return coupon.Reconstruct(a)
}

// FindByID IDでクーポンを取得
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.coupon_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coupons"),
	)

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = ?`

	c, err := scanCoupon(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "coupon not found")
		return nil, coupon.ErrCouponNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}

	span.SetAttributes(
		attribute.String("db.status", c.Status().String()),
		attribute.Int64("db.version", c.Version()),
	)
	span.SetStatus(otelcodes.Ok, "coupon found")
	return c, nil
}

// CompareAndSet statusがACTIVEかつversionが一致する場合のみMutationを適用する
// 適用された場合はtrue、競合に負けた場合はfalseを返す
func (r *CouponRepository) CompareAndSet(ctx context.Context, id string, expectedVersion int64, m coupon.Mutation) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.CompareAndSet")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.coupon_id", id),
		attribute.Int64("db.expected_version", expectedVersion),
		attribute.String("db.new_status", m.Status.String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "coupons"),
	)

	if !m.Status.IsTerminal() {
		return false, coupon.ErrInvalidTransition
	}

	query := `
		UPDATE coupons
		SET
			status = ?,
			used_at = ?,
			used_by_staff_id = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ? AND status = 'ACTIVE'
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		m.Status.String(),
		nullTime(m.UsedAt),
		nullString(m.UsedByStaffID),
		m.UpdatedAt,
		id,
		expectedVersion,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to update coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "version conflict")
		return false, nil
	}
	span.SetStatus(otelcodes.Ok, "coupon updated")
	return true, nil
}

// FindExpiredActive 業務期限を過ぎたACTIVEなクーポンを期限の古い順に取得
func (r *CouponRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*coupon.Coupon, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.FindExpiredActive")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coupons"),
	)

	query := `SELECT ` + couponColumns + `
		FROM coupons
		WHERE status = 'ACTIVE' AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query expired coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(coupons)))
	span.SetStatus(otelcodes.Ok, "expired coupons found")
	return coupons, nil
}
