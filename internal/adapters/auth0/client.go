// Package auth0 implements the IdentityProvider port against an Auth0
// tenant using OIDC discovery. The OAuth/OIDC protocol itself (code
// exchange, JWKS validation, nonce checks) is delegated to go-oidc.
package auth0

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// loginStateTTL bounds how long a login attempt may sit between the
// authorize redirect and the callback.
const loginStateTTL = 10 * time.Minute

// LoginState is what BeginLogin remembers about one login attempt, keyed
// by the opaque state value.
type LoginState struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"return_url"`
}

// ProviderSession is the verified identity cached after a successful code
// exchange, keyed by the provider-session id handed to the browser.
type ProviderSession struct {
	Identity  identity.ExternalIdentity `json:"identity"`
	ReturnURL string                    `json:"return_url"`
	ExpiresAt time.Time                 `json:"expires_at"`
}

// Store persists login states and provider sessions between the redirect
// and the callback. The Redis adapter provides the production implementation.
type Store interface {
	// SaveLoginState stores a pending login attempt under its state value.
	SaveLoginState(ctx context.Context, state string, ls LoginState, ttl time.Duration) error

	// TakeLoginState retrieves and consumes a pending login attempt.
	// Returns nil, nil when the state is unknown or expired.
	TakeLoginState(ctx context.Context, state string) (*LoginState, error)

	// SaveSession caches a verified identity under a provider-session id.
	SaveSession(ctx context.Context, id string, ps ProviderSession, ttl time.Duration) error

	// GetSession returns a cached identity, or nil, nil when absent.
	GetSession(ctx context.Context, id string) (*ProviderSession, error)

	// DeleteSession discards a cached identity. Unknown ids are not an error.
	DeleteSession(ctx context.Context, id string) error
}

// ClientConfig holds configuration for the Auth0 client.
type ClientConfig struct {
	Domain          string
	ClientID        string
	ClientSecret    string
	CallbackURL     string
	LogoutReturnURL string
	Scope           string // defaults to "openid profile email"
	SessionTTL      time.Duration
	HTTPClient      *http.Client // optional
	Store           Store
}

// Client implements ports.IdentityProvider against an Auth0 tenant.
type Client struct {
	config     *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	store      Store
	domain     string
	clientID   string
	logoutURL  string
	sessionTTL time.Duration
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient creates an Auth0 client, performing OIDC discovery against the
// tenant domain.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Domain == "" {
		return nil, errors.New("domain is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.CallbackURL == "" {
		return nil, errors.New("callback URL is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	scope := cfg.Scope
	if scope == "" {
		scope = "openid profile email"
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}

	// Auth0 issuers carry a trailing slash.
	issuer := "https://" + strings.TrimSuffix(cfg.Domain, "/") + "/"
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		store:      cfg.Store,
		domain:     cfg.Domain,
		clientID:   cfg.ClientID,
		logoutURL:  cfg.LogoutReturnURL,
		sessionTTL: sessionTTL,
	}, nil
}

// BeginLogin starts a login attempt and returns the authorize redirect.
func (c *Client) BeginLogin(ctx context.Context, returnURL string) (ports.LoginRedirect, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return ports.LoginRedirect{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return ports.LoginRedirect{}, fmt.Errorf("generate nonce: %w", err)
	}

	ls := LoginState{Nonce: nonce, ReturnURL: returnURL}
	if err := c.store.SaveLoginState(ctx, state, ls, loginStateTTL); err != nil {
		return ports.LoginRedirect{}, fmt.Errorf("save login state: %w", err)
	}

	authURL := c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)

	return ports.LoginRedirect{AuthURL: authURL, State: state}, nil
}

// CurrentIdentity resolves the verified identity for the request: a cached
// provider session when one exists, otherwise the code exchange for an
// inbound callback. Missing, expired, or invalid provider state yields
// nil, nil rather than an error.
func (c *Client) CurrentIdentity(ctx context.Context, cs ports.CallbackState) (*identity.ExternalIdentity, error) {
	if cs.SessionID != "" {
		ps, err := c.store.GetSession(ctx, cs.SessionID)
		if err != nil {
			return nil, fmt.Errorf("get provider session: %w", err)
		}
		if ps != nil {
			ident := ps.Identity
			return &ident, nil
		}
	}

	if cs.Code == "" || cs.State == "" {
		return nil, nil
	}
	return c.exchange(ctx, cs)
}

// exchange completes the code exchange for a callback and caches the
// verified identity under the state value, which doubles as the
// provider-session id the browser keeps.
func (c *Client) exchange(ctx context.Context, cs ports.CallbackState) (*identity.ExternalIdentity, error) {
	ls, err := c.store.TakeLoginState(ctx, cs.State)
	if err != nil {
		return nil, fmt.Errorf("take login state: %w", err)
	}
	if ls == nil {
		// Unknown or expired state: no valid provider session.
		return nil, nil
	}

	token, err := c.config.Exchange(ctx, cs.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", err)
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, errors.New("missing id_token in token response")
	}
	idToken, err := c.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	ident, nonce, err := mapIDTokenClaims(idToken)
	if err != nil {
		return nil, err
	}
	if nonce != ls.Nonce {
		return nil, errors.New("invalid nonce")
	}

	ps := ProviderSession{
		Identity:  *ident,
		ReturnURL: ls.ReturnURL,
		ExpiresAt: time.Now().Add(c.sessionTTL),
	}
	if err := c.store.SaveSession(ctx, cs.State, ps, c.sessionTTL); err != nil {
		return nil, fmt.Errorf("save provider session: %w", err)
	}

	return ident, nil
}

// EndProviderSession discards the cached identity for this browser.
func (c *Client) EndProviderSession(ctx context.Context, cs ports.CallbackState) error {
	if cs.SessionID == "" {
		return nil
	}
	if err := c.store.DeleteSession(ctx, cs.SessionID); err != nil {
		return fmt.Errorf("delete provider session: %w", err)
	}
	return nil
}

// ReturnURL reports the return URL remembered when the login began.
func (c *Client) ReturnURL(ctx context.Context, cs ports.CallbackState) (string, error) {
	id := cs.SessionID
	if id == "" {
		id = cs.State
	}
	if id == "" {
		return "", nil
	}
	ps, err := c.store.GetSession(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get provider session: %w", err)
	}
	if ps == nil {
		return "", nil
	}
	return ps.ReturnURL, nil
}

// LogoutURL is the Auth0 v2 logout endpoint for this tenant.
func (c *Client) LogoutURL() string {
	return fmt.Sprintf("https://%s/v2/logout?client_id=%s&returnTo=%s",
		c.domain, c.clientID, c.logoutURL)
}

// idTokenClaims is the Auth0 ID token claim shape the bridge cares about.
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Nonce string `json:"nonce"`
}

type claimReader interface {
	Claims(v any) error
}

// mapIDTokenClaims maps a verified ID token into an ExternalIdentity plus
// the token's nonce. The full claim set is carried for hook observers.
func mapIDTokenClaims(tok claimReader) (*identity.ExternalIdentity, string, error) {
	var claims idTokenClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, "", fmt.Errorf("parse id_token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, "", errors.New("id_token missing email claim")
	}

	var raw map[string]any
	if err := tok.Claims(&raw); err != nil {
		return nil, "", fmt.Errorf("parse raw claims: %w", err)
	}

	return &identity.ExternalIdentity{
		Email:       claims.Email,
		DisplayName: claims.Name,
		Claims:      raw,
	}, claims.Nonce, nil
}

// generateRandomString generates a cryptographically secure URL-safe random
// string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
