package httpx

import (
	"log/slog"
	"net/http"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Svc          ReconcilerService
	Provider     ports.IdentityProvider
	Directory    ports.UserDirectory
	Policy       identity.SilentLoginPolicy
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router. Non-auth routes are
// wrapped with the silent-login middleware.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	h := &AuthHandlers{
		Svc:          services.Svc,
		Provider:     services.Provider,
		Directory:    services.Directory,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}

	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/", h.SilentLogin(services.Policy, http.HandlerFunc(h.Status)))

	return mux
}
