// Package httpx exposes the SSO bridge over HTTP: login initiation, the
// provider callback, logout, and session status.
package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/ports"
	"github.com/angellco/auth0-bridge/internal/service"
)

// Cookie names shared between handlers and the silent-login middleware.
const (
	cookieLoginState      = "auth0_state"
	cookieProviderSession = "auth0_session"
	cookieLocalSession    = "session_id"
)

// ReconcilerService is the slice of the reconciliation engine the HTTP
// layer consumes.
type ReconcilerService interface {
	HandleCallback(ctx context.Context, cs ports.CallbackState) (identity.Outcome, error)
	EvaluateSilentLogin(ctx context.Context, req service.SilentLoginRequest, policy identity.SilentLoginPolicy) (identity.Action, error)
	Logout(ctx context.Context, localSessionID string, cs ports.CallbackState) (string, error)
}

// AuthHandlers provides HTTP handlers for the SSO flow.
type AuthHandlers struct {
	Svc          ReconcilerService
	Provider     ports.IdentityProvider
	Directory    ports.UserDirectory
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login initiates the provider login flow.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	returnURL := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	redirect, err := h.Provider.BeginLogin(r.Context(), returnURL)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Message: "could not start login",
		})
		return
	}

	h.setCookie(w, r, cookieLoginState, redirect.State, 600)
	http.Redirect(w, r, redirect.AuthURL, http.StatusFound)
}

// Callback handles the provider callback and reconciles the external
// identity into a local account and session.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	cs := callbackState(r)

	outcome, err := h.Svc.HandleCallback(r.Context(), cs)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "callback reconciliation failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Message: "login failed",
		})
		return
	}

	switch outcome.Decision {
	case identity.DecisionNoIdentity:
		h.clearCookie(w, r, cookieLoginState)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "login_failed",
			Message: "login failed",
		})
		return

	case identity.DecisionCreationRejected:
		h.clearCookie(w, r, cookieLoginState)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnprocessableEntity,
			ErrCode: "user_save_failed",
			Message: "could not save user",
		})
		return
	}

	h.setSessionCookie(w, r, outcome)

	// The state value doubles as the provider-session id for this browser.
	if cs.State != "" {
		h.setCookie(w, r, cookieProviderSession, cs.State, int(time.Until(outcome.Session.ExpiresAt).Seconds()))
	}
	h.clearCookie(w, r, cookieLoginState)

	returnURL, err := h.Provider.ReturnURL(r.Context(), cs)
	if err != nil {
		h.logger().WarnContext(r.Context(), "resolve return URL failed", "error", err)
	}
	http.Redirect(w, r, withNotice(safeRedirectPath(returnURL), "logged-in"), http.StatusFound)
}

// Logout ends the local and provider sessions and redirects the browser to
// the provider logout URL.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	localSession := cookieValue(r, cookieLocalSession)
	cs := callbackState(r)

	logoutURL, err := h.Svc.Logout(r.Context(), localSession, cs)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "logout failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "logout_failed",
			Message: "logout failed",
		})
		return
	}

	h.clearCookie(w, r, cookieLocalSession)
	h.clearCookie(w, r, cookieProviderSession)

	http.Redirect(w, r, logoutURL, http.StatusFound)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := cookieValue(r, cookieLocalSession)
	if sessionID == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	acct, err := h.Directory.CurrentSessionUser(r.Context(), sessionID)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "resolve session user failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "status_failed",
			Message: "could not resolve session",
		})
		return
	}
	if acct == nil {
		h.clearCookie(w, r, cookieLocalSession)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":         acct.ID,
			"email":      acct.Email,
			"username":   acct.Username,
			"first_name": acct.FirstName,
			"last_name":  acct.LastName,
			"active":     acct.Active,
		},
	})
}

// callbackState assembles the provider callback state from the request's
// query parameters and cookies.
func callbackState(r *http.Request) ports.CallbackState {
	return ports.CallbackState{
		SessionID: cookieValue(r, cookieProviderSession),
		Code:      r.URL.Query().Get("code"),
		State:     r.URL.Query().Get("state"),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, outcome identity.Outcome) {
	maxAge := int(time.Until(outcome.Session.ExpiresAt).Seconds())
	h.setCookie(w, r, cookieLocalSession, outcome.Session.ID, maxAge)
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// withNotice appends a notice query parameter to a relative redirect path.
func withNotice(path, notice string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set("notice", notice)
	u.RawQuery = q.Encode()
	return u.String()
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
