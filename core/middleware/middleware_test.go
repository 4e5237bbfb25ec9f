package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_StoresClaims(t *testing.T) {
	mw := NewMiddleware("secret", 10, 10)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, claims.RecordID)
	}, mw.AuthMiddleware())

	token, err := utils.GenerateToken("secret", &utils.TokenClaims{ProjectID: 1, RecordID: "3", Scope: constants.ScopeTokenAccess}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit_RejectsBurstOverflow(t *testing.T) {
	mw := NewMiddleware("secret", 0.001, 2)
	e := echo.New()
	e.GET("/p", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw.RateLimit())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
