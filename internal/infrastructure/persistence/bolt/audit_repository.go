// Package bolt 組み込みKVS（BoltDB）による監査ログ
//
// レコードは records バケットに連番キーで追記され、クーポン単位の参照用に
// by_coupon バケット配下へクーポンごとのサブバケットで連番キーを保持する。
// 更新・削除の操作は提供しない。
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"redemption-server/internal/domain/redemption"
)

var (
	recordsBucket  = []byte("records")
	byCouponBucket = []byte("by_coupon")
)

// recordJSON 保存形式
type recordJSON struct {
	ID         string    `json:"id"`
	CouponID   string    `json:"coupon_id,omitempty"`
	StaffID    string    `json:"staff_id"`
	MerchantID string    `json:"merchant_id"`
	Outcome    string    `json:"outcome"`
	TokenNonce string    `json:"token_nonce,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditRepository BoltDB実装のAuditRepository
type AuditRepository struct {
	db     *bolt.DB
	tracer trace.Tracer
}

// NewAuditRepository ファイルを開き（なければ作成し）AuditRepositoryを作成
func NewAuditRepository(path string) (*AuditRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(byCouponBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}

	return &AuditRepository{db: db, tracer: otel.Tracer("bolt-audit-repository")}, nil
}

// Close ファイルロックを解放
func (r *AuditRepository) Close() error {
	return r.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Append 監査レコードを追記（fsync完了後に返る）
func (r *AuditRepository) Append(ctx context.Context, rec *redemption.Record) error {
	_, span := r.tracer.Start(ctx, "BoltAuditRepository.Append")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.record_id", rec.ID()),
		attribute.String("db.outcome", rec.Outcome().String()),
		attribute.String("db.operation", "PUT"),
		attribute.String("db.bucket", string(recordsBucket)),
	)

	data, err := json.Marshal(recordJSON{
		ID:         rec.ID(),
		CouponID:   rec.CouponID(),
		StaffID:    rec.StaffID(),
		MerchantID: rec.MerchantID(),
		Outcome:    rec.Outcome().String(),
		TokenNonce: rec.TokenNonce(),
		Timestamp:  rec.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode redemption record: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		key := itob(seq)
		if err := records.Put(key, data); err != nil {
			return err
		}
		if rec.CouponID() == "" {
			return nil
		}
		idx, err := tx.Bucket(byCouponBucket).CreateBucketIfNotExists([]byte(rec.CouponID()))
		if err != nil {
			return err
		}
		return idx.Put(key, nil)
	})
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
	_, span := r.tracer.Start(ctx, "BoltAuditRepository.FindByCouponID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.coupon_id", couponID),
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "GET"),
		attribute.String("db.bucket", string(byCouponBucket)),
	)

	var out []*redemption.Record
	err := r.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(byCouponBucket).Bucket([]byte(couponID))
		if idx == nil {
			return nil
		}
		records := tx.Bucket(recordsBucket)

		c := idx.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			v := records.Get(k)
			if v == nil {
				return fmt.Errorf("dangling index entry for coupon %s", couponID)
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to read redemption records: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(out)))
	span.SetStatus(otelcodes.Ok, "redemption records found")
	return out, nil
}

func decodeRecord(v []byte) (*redemption.Record, error) {
	var rj recordJSON
	if err := json.Unmarshal(v, &rj); err != nil {
		return nil, err
	}
	o, err := redemption.NewOutcome(rj.Outcome)
	if err != nil {
		return nil, err
	}
	return redemption.NewRecord(rj.ID, rj.CouponID, rj.StaffID, rj.MerchantID, o, rj.TokenNonce, rj.Timestamp)
}
