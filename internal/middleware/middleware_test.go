package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", mw, func(c *gin.Context) {
		body := make([]byte, 64)
		n, _ := c.Request.Body.Read(body)
		operator, _ := middleware.GetOperatorIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"body": string(body[:n]), "operator": operator})
	})
	return r
}

func TestWebhookSignature(t *testing.T) {
	const secret = "shared-secret"
	payload := `{"messageID":"m-1"}`
	router := newRouter(middleware.WebhookSignature(secret))

	t.Run("valid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
		req.Header.Set(middleware.SignatureHeader, middleware.Sign(secret, []byte(payload)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "m-1", "body must be readable downstream")
	})

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
		req.Header.Set(middleware.SignatureHeader, middleware.Sign("other", []byte(payload)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty secret disables verification", func(t *testing.T) {
		open := newRouter(middleware.WebhookSignature(""))
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
		w := httptest.NewRecorder()
		open.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	lim, err := middleware.NewRateLimiter("2-M")
	require.NoError(t, err)
	router := newRouter(middleware.RateLimit(lim))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	_, err = middleware.NewRateLimiter("not-a-rate")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "jwt-secret"
	router := newRouter(middleware.AuthMiddleware(secret))

	sign := func(t *testing.T, key string, claims jwt.RegisteredClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return token
	}
	valid := jwt.RegisteredClaims{
		Subject:   "ops-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "Authorization header required"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "Bearer"},
		{name: "bad signature", header: "Bearer " + sign(t, "other", valid), wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
		{
			name: "expired",
			header: "Bearer " + sign(t, secret, jwt.RegisteredClaims{
				Subject:   "ops-7",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Token has expired",
		},
		{name: "no subject", header: "Bearer " + sign(t, secret, jwt.RegisteredClaims{}), wantStatus: http.StatusUnauthorized, wantBody: "Invalid token claims"},
		{name: "valid", header: "Bearer " + sign(t, secret, valid), wantStatus: http.StatusOK, wantBody: "ops-7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantBody)
		})
	}
}
