package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherre/multisig-service/internal/config"
)

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newProtectedRouter(cfg *config.Config, seen *string) *mux.Router {
	r := mux.NewRouter()
	r.Use(AuthMiddleware(cfg))
	r.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		*seen = MemberAddress(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMember string
	}{
		{"valid token", "Bearer " + signToken(t, cfg.JWTSecret, "0x0a1", time.Hour), http.StatusOK, "0x0a1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not a bearer token", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "0x0a1", time.Hour), http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + signToken(t, cfg.JWTSecret, "0x0a1", -time.Hour), http.StatusUnauthorized, ""},
		{"empty subject", "Bearer " + signToken(t, cfg.JWTSecret, "", time.Hour), http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			router := newProtectedRouter(cfg, &seen)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMember, seen)
		})
	}
}

func TestMemberAddressWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, MemberAddress(req.Context()))
}
