package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/brokerage-service/internal/config"
)

func signed(t *testing.T, method jwt.SigningMethod, secret string, expires time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(cfg *config.Config, authHeader string) (*httptest.ResponseRecorder, string) {
	var subject string
	h := AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/systematic/run", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, subject
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	future := time.Now().Add(time.Hour)

	rec, subject := serve(cfg, "Bearer "+signed(t, jwt.SigningMethodHS256, "secret", future))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", subject)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic YWRtaW46YWRtaW4=",
		"wrong secret":   "Bearer " + signed(t, jwt.SigningMethodHS256, "other", future),
		"expired":        "Bearer " + signed(t, jwt.SigningMethodHS256, "secret", time.Now().Add(-time.Minute)),
		"wrong method":   "Bearer " + signed(t, jwt.SigningMethodHS512, "secret", future),
		"garbage":        "Bearer not-a-token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, subject := serve(cfg, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, subject)
		})
	}
}
