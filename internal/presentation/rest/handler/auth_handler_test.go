package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-server/internal/infrastructure/auth"
)

func TestAuthHandler_GenerateToken(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           string
		expectedStatus int
		expectedRole   auth.Role
	}{
		{
			name:           "正常系: 顧客トークン",
			userID:         testCustomer,
			body:           `{"role":"customer"}`,
			expectedStatus: http.StatusOK,
			expectedRole:   auth.RoleCustomer,
		},
		{
			name:           "正常系: スタッフトークン",
			userID:         testStaff,
			body:           `{"role":"staff","merchant_id":"merchant-a"}`,
			expectedStatus: http.StatusOK,
			expectedRole:   auth.RoleStaff,
		},
		{
			name:           "異常系: 所属していない加盟店",
			userID:         testStaff,
			body:           `{"role":"staff","merchant_id":"merchant-b"}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "異常系: 不正なロール",
			userID:         testStaff,
			body:           `{"role":"admin"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: 不正なJSON",
			userID:         testStaff,
			body:           `{"role":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)

			rec := f.serve(t, f.auth.GenerateToken, http.MethodPost,
				"/admin/users/"+tt.userID+"/issue_token", tt.body, nil,
				map[string]string{"user_id": tt.userID})

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp GenerateTokenResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, 3600, resp.ExpiresIn)

			p, err := f.authn.Parse(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, p.UserID)
			assert.Equal(t, tt.expectedRole, p.Role)
		})
	}
}
