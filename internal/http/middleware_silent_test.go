package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/ports"
)

func passthroughMarker(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestSilentLogin_EmptyPolicyPassesThrough(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Identity = nil

	var hit bool
	mw := env.handlers.SilentLogin(identity.SilentLoginPolicy{}, passthroughMarker(&hit))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing", nil))

	assert.True(t, hit)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Zero(t, env.provider.BeginCalls)
}

func TestSilentLogin_ExistingSessionSkipsEvaluation(t *testing.T) {
	env := newTestEnv(t)
	policy := identity.SilentLoginPolicy{ReferrerWhitelist: []string{"sso.example.com"}}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	req.Header.Set("Referer", "https://sso.example.com/app")
	req.AddCookie(&http.Cookie{Name: cookieLocalSession, Value: "sess-1"})
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	assert.True(t, hit)
	assert.Zero(t, env.provider.BeginCalls)
}

func TestSilentLogin_ReferrerMatchRedirectsToProvider(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Identity = nil
	policy := identity.SilentLoginPolicy{ReferrerWhitelist: []string{"sso.example.com"}}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	req := httptest.NewRequest(http.MethodGet, "/pricing?plan=pro", nil)
	req.Header.Set("Referer", "https://SSO.example.com/app")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	assert.False(t, hit)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, env.provider.AuthURL, rec.Header().Get("Location"))
	assert.Equal(t, []string{"/pricing?plan=pro"}, env.provider.ReturnURLs)

	state := cookieByName(t, rec, cookieLoginState)
	require.NotNil(t, state)
	assert.Equal(t, "state-1", state.Value)
}

func TestSilentLogin_UnmatchedReferrerPassesThrough(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Identity = nil
	policy := identity.SilentLoginPolicy{ReferrerWhitelist: []string{"sso.example.com"}}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	req.Header.Set("Referer", "https://other.example.com/")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	assert.True(t, hit)
	assert.Zero(t, env.provider.BeginCalls)
}

func TestSilentLogin_QueryParamMatchRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Identity = nil
	policy := identity.SilentLoginPolicy{
		QueryParamWhitelist: []identity.ParamGroup{{"sso": "1"}},
	}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing?sso=1", nil))

	assert.False(t, hit)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 1, env.provider.BeginCalls)
}

func TestSilentLogin_CallbackOnPageEstablishesSession(t *testing.T) {
	env := newTestEnv(t)
	policy := identity.SilentLoginPolicy{ReferrerWhitelist: []string{"sso.example.com"}}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing?code=c&state=s", nil))

	assert.False(t, hit)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 1, env.dir.Accounts())
	assert.Equal(t, 1, env.dir.Sessions())

	session := cookieByName(t, rec, cookieLocalSession)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
}

func TestSilentLogin_EvaluatorFaultFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	env.provider.CurrentIdentityFunc = func(context.Context, ports.CallbackState) (*identity.ExternalIdentity, error) {
		return nil, assert.AnError
	}
	policy := identity.SilentLoginPolicy{ReferrerWhitelist: []string{"sso.example.com"}}

	var hit bool
	mw := env.handlers.SilentLogin(policy, passthroughMarker(&hit))

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	req.Header.Set("Referer", "https://sso.example.com/")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	assert.True(t, hit)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
