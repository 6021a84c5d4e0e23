// Package ports defines interfaces (hexagonal ports) for the SSO bridge.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/domain/user"
)

// ErrAccountExists is returned by UserDirectory.Save when the email or
// username is already taken. It is an expected rejection, distinct from
// transport faults, and directory implementations must wrap it so the
// engine can match with errors.Is.
var ErrAccountExists = errors.New("account already exists")

// CallbackState carries the request-scoped provider signals the identity
// provider needs to resolve the current external identity: either an
// existing provider-session id, or the code/state pair of an inbound
// OAuth callback.
type CallbackState struct {
	// SessionID is the provider-session cookie value, when present.
	SessionID string

	// Code and State are the OAuth callback query parameters, when present.
	Code  string
	State string
}

// LoginRedirect is the result of initiating a provider login.
type LoginRedirect struct {
	// AuthURL is the provider authorize URL the browser is sent to.
	AuthURL string

	// State is the opaque login-state id bound to this attempt.
	State string
}

// IdentityProvider performs the OAuth/OIDC dance against the external
// identity provider. The bridge never implements the protocol itself.
type IdentityProvider interface {
	// CurrentIdentity resolves the verified external identity for the
	// current request, completing the code exchange when the callback
	// parameters are present. It returns nil, nil when no valid provider
	// session exists; that is an expected outcome, not an error.
	CurrentIdentity(ctx context.Context, cs CallbackState) (*identity.ExternalIdentity, error)

	// BeginLogin starts a login attempt, remembering returnURL for the
	// eventual callback, and returns the provider redirect.
	BeginLogin(ctx context.Context, returnURL string) (LoginRedirect, error)

	// EndProviderSession discards the provider-side session, if any.
	EndProviderSession(ctx context.Context, cs CallbackState) error

	// ReturnURL reports the return URL remembered by BeginLogin for the
	// given callback, or empty when none was stored.
	ReturnURL(ctx context.Context, cs CallbackState) (string, error)

	// LogoutURL is the provider logout endpoint the browser is redirected
	// to after a local logout.
	LogoutURL() string
}

// UserDirectory looks up, creates, validates, activates, and groups local
// accounts, and owns local session persistence. The account-per-email
// uniqueness invariant is enforced here, not by the reconciliation engine.
type UserDirectory interface {
	// FindByEmailOrUsername matches q case-insensitively against account
	// email or username. Returns nil, nil when absent.
	FindByEmailOrUsername(ctx context.Context, q string) (*user.Account, error)

	// NewDraft returns an unsaved account draft.
	NewDraft() *user.Account

	// Validate checks a draft before persistence. A validation error is an
	// expected rejection, not a transport fault.
	Validate(draft *user.Account) error

	// Save persists a draft. A duplicate email or username surfaces as
	// ErrAccountExists; any other error is a transport fault.
	Save(ctx context.Context, draft *user.Account) error

	// Activate marks a saved account active, bypassing any confirmation
	// workflow.
	Activate(ctx context.Context, acct *user.Account) error

	// GroupByHandle resolves a group by its handle. Returns nil, nil when
	// the handle does not resolve.
	GroupByHandle(ctx context.Context, handle string) (*user.Group, error)

	// AssignToGroups replaces the account's group assignments.
	AssignToGroups(ctx context.Context, acct *user.Account, groups []user.Group) error

	// AssignToDefaultGroup applies the directory's default assignment.
	AssignToDefaultGroup(ctx context.Context, acct *user.Account) error

	// StartSession establishes a local session for the account.
	StartSession(ctx context.Context, acct *user.Account, d time.Duration) (*user.Session, error)

	// EndSession destroys a local session. Unknown ids are not an error.
	EndSession(ctx context.Context, sessionID string) error

	// CurrentSessionUser resolves the account behind a live session, or
	// nil, nil when the session is missing or expired.
	CurrentSessionUser(ctx context.Context, sessionID string) (*user.Account, error)

	// SessionDuration is the directory's configured session lifetime.
	SessionDuration() time.Duration
}
