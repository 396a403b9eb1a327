package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"redemption-server/internal/domain/coupon"
	otelinfra "redemption-server/internal/infrastructure/observability/otel"
	"redemption-server/internal/infrastructure/persistence/memory"
)

// MockCouponRepository モッククーポンリポジトリ
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponRepository) CompareAndSet(ctx context.Context, id string, expectedVersion int64, mu coupon.Mutation) (bool, error) {
	args := m.Called(ctx, id, expectedVersion, mu)
	return args.Bool(0), args.Error(1)
}

func (m *MockCouponRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*coupon.Coupon, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*coupon.Coupon), args.Error(1)
}

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T, repo coupon.CouponRepository, batch int) *Sweeper {
	t.Helper()
	tracer := otel.Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	s := NewSweeper(repo, time.Minute, batch, logger, metrics)
	s.now = func() time.Time { return now }
	return s
}

func seed(t *testing.T, repo *memory.CouponRepository, id string, status coupon.CouponStatus, expiresAt time.Time) {
	t.Helper()
	a := coupon.Attributes{
		ID:         id,
		MerchantID: "merchant-1",
		CustomerID: "customer-1",
		Status:     status,
		ExpiresAt:  expiresAt,
		Version:    1,
	}
	if status == coupon.CouponStatusUsed {
		usedAt := expiresAt.Add(-time.Hour)
		a.UsedAt = &usedAt
		a.UsedByStaffID = "staff-1"
	}
	require.NoError(t, repo.Save(context.Background(), coupon.MustReconstruct(a)))
}

func TestSweeper_SweepOnce(t *testing.T) {
	repo := memory.NewCouponRepository()
	for i := 0; i < 5; i++ {
		seed(t, repo, fmt.Sprintf("expired-%d", i), coupon.CouponStatusActive, now.Add(-time.Duration(i+1)*time.Hour))
	}
	seed(t, repo, "valid", coupon.CouponStatusActive, now.Add(time.Hour))
	seed(t, repo, "used", coupon.CouponStatusUsed, now.Add(-time.Hour))

	// バッチサイズより多い件数も1回で処理する
	n, err := newSweeper(t, repo, 2).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	tests := []struct {
		id   string
		want coupon.CouponStatus
	}{
		{"expired-0", coupon.CouponStatusExpired},
		{"expired-4", coupon.CouponStatusExpired},
		{"valid", coupon.CouponStatusActive},
		{"used", coupon.CouponStatusUsed},
	}
	for _, tt := range tests {
		c, err := repo.FindByID(context.Background(), tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Status(), tt.id)
	}

	// 2回目は何もしない
	n, err = newSweeper(t, repo, 2).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweeper_SweepOnce_Errors(t *testing.T) {
	expired := coupon.MustReconstruct(coupon.Attributes{
		ID:         "c1",
		MerchantID: "merchant-1",
		CustomerID: "customer-1",
		Status:     coupon.CouponStatusActive,
		ExpiresAt:  now.Add(-time.Hour),
		Version:    3,
	})

	tests := []struct {
		name    string
		setup   func(*MockCouponRepository)
		want    int
		wantErr bool
	}{
		{
			name: "正常系: 同時に引き換えられたクーポンは上書きしない",
			setup: func(m *MockCouponRepository) {
				m.On("FindExpiredActive", mock.Anything, now, 10).Return([]*coupon.Coupon{expired}, nil)
				m.On("CompareAndSet", mock.Anything, "c1", int64(3), mock.Anything).Return(false, nil)
			},
			want: 0,
		},
		{
			name: "異常系: 取得エラー",
			setup: func(m *MockCouponRepository) {
				m.On("FindExpiredActive", mock.Anything, now, 10).Return(nil, errors.New("connection refused"))
			},
			wantErr: true,
		},
		{
			name: "異常系: 更新エラー",
			setup: func(m *MockCouponRepository) {
				m.On("FindExpiredActive", mock.Anything, now, 10).Return([]*coupon.Coupon{expired}, nil)
				m.On("CompareAndSet", mock.Anything, "c1", int64(3), mock.Anything).Return(false, errors.New("deadlock"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCouponRepository)
			tt.setup(repo)

			n, err := newSweeper(t, repo, 10).SweepOnce(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, n)
			repo.AssertExpectations(t)
		})
	}
}

func TestSweeper_Run(t *testing.T) {
	repo := memory.NewCouponRepository()
	seed(t, repo, "c1", coupon.CouponStatusActive, now.Add(-time.Hour))

	s := newSweeper(t, repo, 10)
	s.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		c, err := repo.FindByID(context.Background(), "c1")
		return err == nil && c.Status() == coupon.CouponStatusExpired
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
