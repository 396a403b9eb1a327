package mysql

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StaffRepository MySQL実装のStaffDirectory
type StaffRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewStaffRepository 新しいStaffRepositoryを作成
func NewStaffRepository(db *DB) *StaffRepository {
	return &StaffRepository{
		db:     db,
		tracer: otel.Tracer("staff-repository"),
	}
}

// IsStaffOf スタッフが加盟店に所属しているかを返す
func (r *StaffRepository) IsStaffOf(ctx context.Context, staffID, merchantID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "StaffRepository.IsStaffOf")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.staff_id", staffID),
		attribute.String("db.merchant_id", merchantID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "merchant_staff"),
	)

	query := `
		SELECT COUNT(*)
		FROM merchant_staff
		WHERE staff_id = ? AND merchant_id = ? AND active = TRUE
	`

	var count int
	if err := r.db.conn(ctx).QueryRowContext(ctx, query, staffID, merchantID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to check staff membership: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "staff membership checked")
	return count > 0, nil
}
