package redemption

import (
	"errors"
	"time"
)

// Record 引き換え試行の監査レコード（追記のみ、更新・削除しない）
type Record struct {
	id         string
	couponID   string
	staffID    string
	merchantID string
	outcome    Outcome
	tokenNonce string
	timestamp  time.Time
}

// NewRecord 新しいRecordを作成
// トークンが解析できなかった場合、couponIDとtokenNonceは空になる
func NewRecord(id, couponID, staffID, merchantID string, outcome Outcome, tokenNonce string, timestamp time.Time) (*Record, error) {
	if id == "" {
		return nil, errors.New("invalid record id")
	}
	if outcome.Category() == "" {
		return nil, errors.New("invalid outcome")
	}
	return &Record{
		id:         id,
		couponID:   couponID,
		staffID:    staffID,
		merchantID: merchantID,
		outcome:    outcome,
		tokenNonce: tokenNonce,
		timestamp:  timestamp,
	}, nil
}

// ID レコードIDを返す
func (r *Record) ID() string {
	return r.id
}

// CouponID クーポンIDを返す
func (r *Record) CouponID() string {
	return r.couponID
}

// StaffID スタッフIDを返す
func (r *Record) StaffID() string {
	return r.staffID
}

// MerchantID 加盟店IDを返す
func (r *Record) MerchantID() string {
	return r.merchantID
}

// Outcome 結果コードを返す
func (r *Record) Outcome() Outcome {
	return r.outcome
}

// TokenNonce トークンのnonceを返す
func (r *Record) TokenNonce() string {
	return r.tokenNonce
}

// Timestamp 記録日時を返す
func (r *Record) Timestamp() time.Time {
	return r.timestamp
}
