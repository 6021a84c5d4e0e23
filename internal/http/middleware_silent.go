package httpx

import (
	"net/http"
	"time"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/service"
)

// SilentLogin runs the silent-login evaluator on ordinary page requests.
// Requests that already carry a local session pass straight through.
// Evaluator faults are logged and the page renders normally; silent login
// never blocks a page.
func (h *AuthHandlers) SilentLogin(policy identity.SilentLoginPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookieValue(r, cookieLocalSession) != "" {
			next.ServeHTTP(w, r)
			return
		}

		req := service.SilentLoginRequest{
			Referrer:  r.Referer(),
			Query:     r.URL.Query(),
			Callback:  callbackState(r),
			ReturnURL: r.URL.RequestURI(),
		}

		action, err := h.Svc.EvaluateSilentLogin(r.Context(), req, policy)
		if err != nil {
			h.logger().WarnContext(r.Context(), "silent login evaluation failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		switch action.Kind {
		case identity.ActionAlreadyAuthenticated:
			h.setSessionCookie(w, r, action.Outcome)
			returnURL, rerr := h.Provider.ReturnURL(r.Context(), req.Callback)
			if rerr != nil || returnURL == "" {
				returnURL = r.URL.RequestURI()
			}
			http.Redirect(w, r, safeRedirectPath(returnURL), http.StatusFound)

		case identity.ActionTriggerLogin:
			h.setCookie(w, r, cookieLoginState, action.LoginState, int((10 * time.Minute).Seconds()))
			http.Redirect(w, r, action.RedirectURL, http.StatusFound)

		default:
			next.ServeHTTP(w, r)
		}
	})
}
