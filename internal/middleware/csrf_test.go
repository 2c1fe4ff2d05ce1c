package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfTestHandler() http.Handler {
	m := NewCSRFMiddleware(false)
	return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware(t *testing.T) {
	t.Run("issues a token cookie on first contact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		rec := httptest.NewRecorder()

		csrfTestHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CSRFCookieName, cookies[0].Name)
		assert.NotEmpty(t, cookies[0].Value)
		assert.False(t, cookies[0].HttpOnly)
	})

	t.Run("safe methods pass without a header", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
			req := httptest.NewRequest(method, "/api/v1/tasks", nil)
			rec := httptest.NewRecorder()

			csrfTestHandler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, method)
		}
	})

	t.Run("mutations require the header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "some-token"})
		rec := httptest.NewRecorder()

		csrfTestHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("mismatched header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "some-token"})
		req.Header.Set(CSRFHeaderName, "another-token")
		rec := httptest.NewRecorder()

		csrfTestHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("matching header passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "some-token"})
		req.Header.Set(CSRFHeaderName, "some-token")
		rec := httptest.NewRecorder()

		csrfTestHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token issued on the same request protects it", func(t *testing.T) {
		// A mutation arriving with no cookie gets a fresh token but cannot
		// know it yet, so the request itself is rejected.
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		rec := httptest.NewRecorder()

		csrfTestHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.Len(t, rec.Result().Cookies(), 1)
	})
}
