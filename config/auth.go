package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
)

// Auth0Config contains the Auth0 tenant configuration.
type Auth0Config struct {
	// Domain is the tenant domain, e.g. "example.eu.auth0.com".
	Domain string `env:"DOMAIN"`

	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	// CallbackURL is the absolute URL of the /auth/callback endpoint
	// registered with the tenant.
	CallbackURL string `env:"CALLBACK_URL"`

	// LogoutReturnURL is where Auth0 sends the browser after a logout.
	LogoutReturnURL string `env:"LOGOUT_RETURN_URL"`

	// UserGroupHandle is the optional group newly created accounts are
	// assigned to. Empty means the directory's default assignment.
	UserGroupHandle string `env:"USER_GROUP_HANDLE"`

	// Scope is the OIDC scope requested from the tenant.
	Scope string `env:"SCOPE" envDefault:"openid profile email"`

	// SessionDuration is the local session lifetime.
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"2h"`
}

// Sanitize applies guardrails to Auth0 configuration values.
func (a *Auth0Config) Sanitize() {
	a.Domain = strings.TrimSuffix(strings.TrimSpace(a.Domain), "/")
	if a.SessionDuration <= 0 {
		a.SessionDuration = 2 * time.Hour
	}
}

// Validate enforces the fields the bridge cannot run without.
func (a *Auth0Config) Validate() error {
	if a.Domain == "" {
		return errors.New("AUTH0_DOMAIN is required")
	}
	if a.ClientID == "" {
		return errors.New("AUTH0_CLIENT_ID is required")
	}
	if a.ClientSecret == "" {
		return errors.New("AUTH0_CLIENT_SECRET is required")
	}
	if a.CallbackURL == "" {
		return errors.New("AUTH0_CALLBACK_URL is required")
	}
	return nil
}

// SilentLoginConfig configures the silent-login policy applied to page
// requests. Both whitelists are optional; leaving them empty opts out of
// silent login entirely.
type SilentLoginConfig struct {
	// ReferrerWhitelist entries are matched as case-insensitive substrings
	// of the request referrer. Separated by ";".
	ReferrerWhitelist []string `env:"REFERRER_WHITELIST" envSeparator:";"`

	// QueryParamWhitelist groups are ";"-separated; each group is a
	// ","-separated list of name=value pairs that must all match.
	// Example: "utm_source=partner,sso=1;campaign=spring".
	QueryParamWhitelist []string `env:"QUERY_PARAM_WHITELIST" envSeparator:";"`
}

// Policy parses the configured whitelists into a SilentLoginPolicy.
func (s SilentLoginConfig) Policy() (identity.SilentLoginPolicy, error) {
	policy := identity.SilentLoginPolicy{}

	for _, entry := range s.ReferrerWhitelist {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			policy.ReferrerWhitelist = append(policy.ReferrerWhitelist, entry)
		}
	}

	for _, raw := range s.QueryParamWhitelist {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		group := identity.ParamGroup{}
		for _, pair := range strings.Split(raw, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, value, found := strings.Cut(pair, "=")
			if !found || name == "" {
				return identity.SilentLoginPolicy{}, fmt.Errorf("invalid query param pair %q", pair)
			}
			group[name] = value
		}
		if len(group) > 0 {
			policy.QueryParamWhitelist = append(policy.QueryParamWhitelist, group)
		}
	}

	return policy, nil
}
