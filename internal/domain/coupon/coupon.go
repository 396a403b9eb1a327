package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon クーポンエンティティ（購入単位ごとに1件）
type Coupon struct {
	id            string
	orderID       string
	dealID        string
	merchantID    string
	customerID    string
	dealTitle     string
	faceValue     decimal.Decimal
	status        CouponStatus
	expiresAt     time.Time
	usedAt        *time.Time
	usedByStaffID string
	version       int64 // 楽観的ロック用
	createdAt     time.Time
	updatedAt     time.Time
}

// Attributes クーポンの再構築用属性
type Attributes struct {
	ID            string
	OrderID       string
	DealID        string
	MerchantID    string
	CustomerID    string
	DealTitle     string
	FaceValue     decimal.Decimal
	Status        CouponStatus
	ExpiresAt     time.Time
	UsedAt        *time.Time
	UsedByStaffID string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCoupon 新しいACTIVEなCouponエンティティを作成
func NewCoupon(id, orderID, dealID, merchantID, customerID string, expiresAt time.Time) (*Coupon, error) {
	now := time.Now()
	return Reconstruct(Attributes{
		ID:         id,
		OrderID:    orderID,
		DealID:     dealID,
		MerchantID: merchantID,
		CustomerID: customerID,
		FaceValue:  decimal.Zero,
		Status:     CouponStatusActive,
		ExpiresAt:  expiresAt,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// Reconstruct 永続化された属性からCouponを再構築
// usedAtはstatusがUSEDの場合に限り設定されている必要がある
func Reconstruct(a Attributes) (*Coupon, error) {
	if a.ID == "" || a.MerchantID == "" || a.CustomerID == "" {
		return nil, errors.New("invalid coupon identity")
	}
	if !a.Status.Valid() {
		return nil, ErrInconsistentState
	}
	if (a.UsedAt != nil) != (a.Status == CouponStatusUsed) {
		return nil, ErrInconsistentState
	}
	if a.Status == CouponStatusUsed && a.UsedByStaffID == "" {
		return nil, ErrInconsistentState
	}
	return &Coupon{
		id:            a.ID,
		orderID:       a.OrderID,
		dealID:        a.DealID,
		merchantID:    a.MerchantID,
		customerID:    a.CustomerID,
		dealTitle:     a.DealTitle,
		faceValue:     a.FaceValue,
		status:        a.Status,
		expiresAt:     a.ExpiresAt,
		usedAt:        a.UsedAt,
		usedByStaffID: a.UsedByStaffID,
		version:       a.Version,
		createdAt:     a.CreatedAt,
		updatedAt:     a.UpdatedAt,
	}, nil
}

// ID クーポンIDを返す
func (c *Coupon) ID() string {
	return c.id
}

// OrderID 注文IDを返す
func (c *Coupon) OrderID() string {
	return c.orderID
}

// DealID ディールIDを返す
func (c *Coupon) DealID() string {
	return c.dealID
}

// MerchantID 加盟店IDを返す
func (c *Coupon) MerchantID() string {
	return c.merchantID
}

// CustomerID 顧客IDを返す
func (c *Coupon) CustomerID() string {
	return c.customerID
}

// DealTitle ディール名を返す
func (c *Coupon) DealTitle() string {
	return c.dealTitle
}

// FaceValue 額面を返す
func (c *Coupon) FaceValue() decimal.Decimal {
	return c.faceValue
}

// Status ステータスを返す
func (c *Coupon) Status() CouponStatus {
	return c.status
}

// ExpiresAt 有効期限を返す
func (c *Coupon) ExpiresAt() time.Time {
	return c.expiresAt
}

// UsedAt 使用日時を返す（未使用の場合はnil）
func (c *Coupon) UsedAt() *time.Time {
	return c.usedAt
}

// UsedByStaffID 使用処理したスタッフIDを返す
func (c *Coupon) UsedByStaffID() string {
	return c.usedByStaffID
}

// Version バージョンを返す（楽観的ロック用）
func (c *Coupon) Version() int64 {
	return c.version
}

// CreatedAt 作成日時を返す
func (c *Coupon) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt 更新日時を返す
func (c *Coupon) UpdatedAt() time.Time {
	return c.updatedAt
}

// Attributes 永続化用の属性を返す
func (c *Coupon) Attributes() Attributes {
	return Attributes{
		ID:            c.id,
		OrderID:       c.orderID,
		DealID:        c.dealID,
		MerchantID:    c.merchantID,
		CustomerID:    c.customerID,
		DealTitle:     c.dealTitle,
		FaceValue:     c.faceValue,
		Status:        c.status,
		ExpiresAt:     c.expiresAt,
		UsedAt:        c.usedAt,
		UsedByStaffID: c.usedByStaffID,
		Version:       c.version,
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
}

// IsExpiredAt 指定時刻時点で業務上の有効期限を過ぎているかを返す
func (c *Coupon) IsExpiredAt(now time.Time) bool {
	return now.After(c.expiresAt)
}

// CheckIssuable 顧客に引き換えトークンを発行できるかチェック
func (c *Coupon) CheckIssuable(customerID string, now time.Time) error {
	if c.customerID != customerID {
		return ErrNotEligible
	}
	if !c.status.IsActive() {
		return ErrNotEligible
	}
	if !now.Before(c.expiresAt) {
		return ErrNotEligible
	}
	return nil
}

// CheckRedeemable 加盟店のスタッフが引き換えできるかチェック
// 判定順: 加盟店 → 業務期限 → ステータス
func (c *Coupon) CheckRedeemable(merchantID string, now time.Time) error {
	if c.merchantID != merchantID {
		return ErrWrongMerchant
	}
	if c.IsExpiredAt(now) {
		return ErrCouponExpired
	}
	if !c.status.IsActive() {
		return ErrCouponAlreadyUsed
	}
	return nil
}

// Redeem 使用済みへの遷移を表すMutationを作成する（エンティティ自体は変更しない）
func (c *Coupon) Redeem(staffID string, now time.Time) (Mutation, error) {
	if staffID == "" {
		return Mutation{}, errors.New("staff id is required")
	}
	if !c.status.IsActive() {
		return Mutation{}, ErrCouponAlreadyUsed
	}
	usedAt := now
	return Mutation{
		Status:        CouponStatusUsed,
		UsedAt:        &usedAt,
		UsedByStaffID: staffID,
		UpdatedAt:     now,
	}, nil
}

// Expire 期限切れへの遷移を表すMutationを作成する
func (c *Coupon) Expire(now time.Time) (Mutation, error) {
	if !c.status.IsActive() {
		return Mutation{}, ErrInvalidTransition
	}
	if !c.IsExpiredAt(now) {
		return Mutation{}, ErrInvalidTransition
	}
	return Mutation{
		Status:    CouponStatusExpired,
		UpdatedAt: now,
	}, nil
}

// Apply CompareAndSet成功後のMutationをエンティティに反映し、バージョンをインクリメント
func (c *Coupon) Apply(m Mutation) error {
	if !c.status.IsActive() || !m.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	c.status = m.Status
	c.usedAt = m.UsedAt
	c.usedByStaffID = m.UsedByStaffID
	c.updatedAt = m.UpdatedAt
	c.version++
	return nil
}

// Mutation ACTIVEから終端状態への状態遷移
// CompareAndSetは status == ACTIVE かつ version == expectedVersion の場合にのみ適用する
type Mutation struct {
	Status        CouponStatus
	UsedAt        *time.Time
	UsedByStaffID string
	UpdatedAt     time.Time
}

// MustReconstruct テスト用ヘルパー: Reconstructを呼び出し、エラーが発生した場合はpanicする
func MustReconstruct(a Attributes) *Coupon {
	c, err := Reconstruct(a)
	if err != nil {
		panic(err)
	}
	return c
}
