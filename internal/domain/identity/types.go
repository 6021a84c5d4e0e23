// Package identity contains domain-level types for the external identity
// provider side of the SSO bridge. It is pure and free of framework/adapter
// concerns.
package identity

import (
	"strings"

	"github.com/angellco/auth0-bridge/internal/domain/user"
)

// ExternalIdentity is the verified principal returned by the identity
// provider for one callback request. It is produced fresh per request and
// never persisted.
type ExternalIdentity struct {
	// Email is the join key to local accounts.
	Email string

	// DisplayName is the provider-supplied full name, space delimited.
	DisplayName string

	// Claims carries the raw provider claim set for hook observers.
	Claims map[string]any
}

// SplitDisplayName derives first/last name from a space-delimited display
// name by splitting on the first whitespace boundary. Fewer than two tokens
// yields empty strings; callers treat that as "leave the names unset".
func SplitDisplayName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	parts := strings.SplitN(name, " ", 2)
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// Decision describes the outcome of one callback reconciliation.
type Decision string

const (
	// DecisionNoIdentity means the provider had no valid session. Expected,
	// user-facing, not a fault.
	DecisionNoIdentity Decision = "no_identity"

	// DecisionAccountCreated means a local account was created and logged in.
	DecisionAccountCreated Decision = "account_created"

	// DecisionAccountReused means an existing local account was logged in.
	DecisionAccountReused Decision = "account_reused"

	// DecisionCreationRejected means validation or persistence refused the
	// draft account; no session was established.
	DecisionCreationRejected Decision = "creation_rejected"
)

// Outcome is the result of one callback reconciliation pass.
type Outcome struct {
	Decision Decision
	Account  *user.Account
	Session  *user.Session
}

// LoggedIn reports whether the outcome established a local session.
func (o Outcome) LoggedIn() bool {
	return o.Decision == DecisionAccountCreated || o.Decision == DecisionAccountReused
}

// ParamGroup is one group of required query parameters. A group matches a
// request only when every name/value pair is present and exactly equal.
type ParamGroup map[string]string

// SilentLoginPolicy configures the silent-login evaluator. Both whitelists
// are optional; an empty policy means opt-out.
type SilentLoginPolicy struct {
	// ReferrerWhitelist entries are tested as case-insensitive substrings of
	// the request referrer.
	ReferrerWhitelist []string

	// QueryParamWhitelist groups are evaluated independently against the
	// request query parameters.
	QueryParamWhitelist []ParamGroup
}

// Empty reports whether the policy has no configured signals.
func (p SilentLoginPolicy) Empty() bool {
	return len(p.ReferrerWhitelist) == 0 && len(p.QueryParamWhitelist) == 0
}

// ActionKind enumerates what the silent-login evaluator decided.
type ActionKind string

const (
	// ActionNone means render the page normally, no redirect.
	ActionNone ActionKind = "none"

	// ActionTriggerLogin means redirect to the provider login.
	ActionTriggerLogin ActionKind = "trigger_login"

	// ActionAlreadyAuthenticated means an active provider session was
	// reconciled into a local session; redirect to the return URL.
	ActionAlreadyAuthenticated ActionKind = "already_authenticated"
)

// Action is the silent-login evaluator result. RedirectURL is set for
// TriggerLogin; Outcome is set for AlreadyAuthenticated.
type Action struct {
	Kind        ActionKind
	RedirectURL string
	LoginState  string
	Outcome     Outcome
}
