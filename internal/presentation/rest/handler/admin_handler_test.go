package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-server/internal/domain/signing"
)

func TestAdminHandler_Sweep(t *testing.T) {
	f := newHandlerFixture(t)
	f.addCoupon(t, "old-1", testMerchant, time.Now().Add(-2*time.Hour))
	f.addCoupon(t, "old-2", testMerchant, time.Now().Add(-time.Hour))
	f.addCoupon(t, "fresh", testMerchant, time.Now().Add(time.Hour))

	h := NewAdminHandler(f.sweeper, f.keys, nil)
	rec := f.serve(t, h.Sweep, http.MethodPost, "/admin/expiry/sweep", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Expired)

	c, err := f.coupons.FindByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", c.Status().String())
}

func TestAdminHandler_ReloadKeys(t *testing.T) {
	tests := []struct {
		name           string
		reload         func(f *handlerFixture) KeyReloader
		expectedStatus int
		expectedKeys   int
		expectedCur    string
	}{
		{
			name: "正常系: 鍵の再読み込み",
			reload: func(f *handlerFixture) KeyReloader {
				return func(ctx context.Context) error {
					return f.keys.Rotate("v2", bytes.Repeat([]byte("n"), signing.MinSecretLength), time.Now(), time.Minute)
				}
			},
			expectedStatus: http.StatusOK,
			expectedKeys:   2,
			expectedCur:    "v2",
		},
		{
			name:           "異常系: 鍵ファイル未設定",
			reload:         func(f *handlerFixture) KeyReloader { return nil },
			expectedStatus: http.StatusNotImplemented,
		},
		{
			name: "異常系: 再読み込み失敗",
			reload: func(f *handlerFixture) KeyReloader {
				return func(ctx context.Context) error { return errors.New("read failed") }
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			h := NewAdminHandler(f.sweeper, f.keys, tt.reload(f))

			rec := f.serve(t, h.ReloadKeys, http.MethodPost, "/admin/keys/reload", "", nil, nil)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp KeyReloadResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCur, resp.CurrentVersion)
			require.Len(t, resp.Keys, tt.expectedKeys)
			assert.NotContains(t, rec.Body.String(), "nnnn")
		})
	}
}
