package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func staffToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminJWTRejectsWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminJWT("")(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	mw := AdminJWT("secret")

	for _, header := range []string{"", "Token abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		mw(okHandler(nil)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAdminJWTRejectsWrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, "other-secret", "staff-1", time.Hour))

	rec := httptest.NewRecorder()
	AdminJWT("secret")(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsMissingSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	rec := httptest.NewRecorder()
	AdminJWT("secret")(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTExposesStaffID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, "secret", "staff-7", time.Hour))

	var gotStaff string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStaff, _ = StaffIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	AdminJWT("secret")(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "staff-7", gotStaff)
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	called := false
	mw := CORS([]string{"https://dashboard.shadowspark.tech"})

	req := httptest.NewRequest(http.MethodGet, "/admin/escalations/", nil)
	req.Header.Set("Origin", "https://dashboard.shadowspark.tech")
	rec := httptest.NewRecorder()
	mw(okHandler(&called)).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, "https://dashboard.shadowspark.tech", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	mw := CORS([]string{"https://dashboard.shadowspark.tech"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	mw(okHandler(nil)).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSWildcardAndPreflight(t *testing.T) {
	called := false
	mw := CORS([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/admin/escalations/", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	mw(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	mw := RateLimit(1, 2)
	handler := mw(okHandler(nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIsolatesCallers(t *testing.T) {
	mw := RateLimit(1, 1)
	handler := mw(okHandler(nil))

	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "ip %s", ip)
	}
}
