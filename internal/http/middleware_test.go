package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedHandler(t *testing.T, inner http.Handler) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return Logging(logger)(inner), &buf
}

func TestLogging_RedirectRecordsLocation(t *testing.T) {
	h, buf := loggedHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://tenant.auth0.com/authorize", http.StatusFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	line := buf.String()
	assert.Contains(t, line, `"path":"/auth/login"`)
	assert.Contains(t, line, `"status":302`)
	assert.Contains(t, line, `"location":"https://tenant.auth0.com/authorize"`)
	assert.Contains(t, line, `"session":false`)
}

func TestLogging_SessionCookieFlagged(t *testing.T) {
	h, buf := loggedHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: cookieLocalSession, Value: "abc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	line := buf.String()
	assert.Contains(t, line, `"session":true`)
	assert.NotContains(t, line, `"location"`)
}

func TestLogging_SkipsHealthz(t *testing.T) {
	h, buf := loggedHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}

func TestRecover_PanicReturns500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "boom")
}
