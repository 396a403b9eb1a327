package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"redemption-server/internal/domain/coupon"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile 開発用の初期データ
//
//	staff:
//	  - merchant_id: merchant-1
//	    staff_id: staff-1
//	coupons:
//	  - id: c1
//	    order_id: order-1
//	    deal_id: deal-1
//	    deal_title: Two coffees
//	    merchant_id: merchant-1
//	    customer_id: customer-1
//	    face_value: "9.50"
//	    expires_at: 2026-12-31T23:59:59Z
type SeedFile struct {
	Staff   []SeedStaff  `yaml:"staff"`
	Coupons []SeedCoupon `yaml:"coupons"`
}

// SeedStaff 加盟店スタッフ
type SeedStaff struct {
	MerchantID string `yaml:"merchant_id"`
	StaffID    string `yaml:"staff_id"`
}

// SeedCoupon ACTIVEなクーポン
type SeedCoupon struct {
	ID         string    `yaml:"id"`
	OrderID    string    `yaml:"order_id"`
	DealID     string    `yaml:"deal_id"`
	DealTitle  string    `yaml:"deal_title"`
	MerchantID string    `yaml:"merchant_id"`
	CustomerID string    `yaml:"customer_id"`
	FaceValue  string    `yaml:"face_value"`
	ExpiresAt  time.Time `yaml:"expires_at"`
}

// LoadSeed 初期データファイルを読み込んでストアに投入する
func LoadSeed(ctx context.Context, path string, coupons *CouponRepository, staff *StaffDirectory) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, s := range f.Staff {
		staff.Add(s.MerchantID, s.StaffID)
	}

	now := time.Now()
	for _, sc := range f.Coupons {
		faceValue := decimal.Zero
		if sc.FaceValue != "" {
			faceValue, err = decimal.NewFromString(sc.FaceValue)
			if err != nil {
				return 0, fmt.Errorf("coupon %s: invalid face_value: %w", sc.ID, err)
			}
		}
		c, err := coupon.Reconstruct(coupon.Attributes{
			ID:         sc.ID,
			OrderID:    sc.OrderID,
			DealID:     sc.DealID,
			DealTitle:  sc.DealTitle,
			MerchantID: sc.MerchantID,
			CustomerID: sc.CustomerID,
			FaceValue:  faceValue,
			Status:     coupon.CouponStatusActive,
			ExpiresAt:  sc.ExpiresAt,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return 0, fmt.Errorf("coupon %s: %w", sc.ID, err)
		}
		if err := coupons.Save(ctx, c); err != nil {
			return 0, err
		}
	}
	return len(f.Coupons), nil
}
