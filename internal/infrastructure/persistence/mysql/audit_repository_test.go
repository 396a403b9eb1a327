package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"redemption-server/internal/domain/redemption"
)

func TestAuditRepository_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &AuditRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		record    *redemption.Record
		setupMock func()
		wantError bool
	}{
		{
			name: "正常系: 成功レコードを追記",
			record: func() *redemption.Record {
				r, _ := redemption.NewRecord("rec-1", "coupon-1", "staff-1", "merchant-1", redemption.OutcomeSuccess, "nonce-1", ts)
				return r
			}(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO redemption_records`).
					WithArgs("rec-1", sqlmock.AnyArg(), "staff-1", "merchant-1", "SUCCESS", sqlmock.AnyArg(), ts).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "正常系: クーポンID不明のレコード",
			record: func() *redemption.Record {
				r, _ := redemption.NewRecord("rec-2", "", "staff-1", "merchant-1", redemption.OutcomeMalformed, "", ts)
				return r
			}(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO redemption_records`).
					WithArgs("rec-2", sqlmock.AnyArg(), "staff-1", "merchant-1", "MALFORMED", sqlmock.AnyArg(), ts).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "異常系: DBエラー",
			record: func() *redemption.Record {
				r, _ := redemption.NewRecord("rec-3", "coupon-1", "staff-1", "merchant-1", redemption.OutcomeAlreadyUsed, "nonce-1", ts)
				return r
			}(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO redemption_records`).
					WillReturnError(errors.New("disk full"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			err := repo.Append(context.Background(), tt.record)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuditRepository_FindByCouponID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &AuditRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "coupon_id", "staff_id", "merchant_id", "outcome", "token_nonce", "created_at"}).
		AddRow("rec-2", "coupon-1", "staff-2", "merchant-1", "ALREADY_USED", "nonce-2", ts.Add(time.Second)).
		AddRow("rec-1", "coupon-1", "staff-1", "merchant-1", "SUCCESS", "nonce-1", ts)
	mock.ExpectQuery(`SELECT .* FROM redemption_records\s+WHERE coupon_id = \?`).
		WithArgs("coupon-1", 50).
		WillReturnRows(rows)

	got, err := repo.FindByCouponID(context.Background(), "coupon-1", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, redemption.OutcomeAlreadyUsed, got[0].Outcome())
	assert.Equal(t, redemption.OutcomeSuccess, got[1].Outcome())
	assert.Equal(t, "nonce-1", got[1].TokenNonce())

	t.Run("異常系: 不明な結果コード", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "coupon_id", "staff_id", "merchant_id", "outcome", "token_nonce", "created_at"}).
			AddRow("rec-9", "coupon-1", "staff-1", "merchant-1", "BOGUS", nil, ts)
		mock.ExpectQuery(`SELECT .* FROM redemption_records`).WillReturnRows(rows)

		_, err := repo.FindByCouponID(context.Background(), "coupon-1", 50)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
