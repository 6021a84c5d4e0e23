package service

import (
	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/domain/user"
)

// Hook observes a reconciliation step. The account is mutable and shared
// with the engine; the identity is a read-only copy. Hooks run synchronously
// in registration order and cannot abort the flow.
type Hook func(acct *user.Account, ident identity.ExternalIdentity)

// OnBeforeAccountCreated registers a hook fired once on the create path,
// after the draft is populated and before it is validated and saved.
func (r *Reconciler) OnBeforeAccountCreated(h Hook) {
	r.beforeCreated = append(r.beforeCreated, h)
}

// OnBeforeAccountLogin registers a hook fired once per successful
// reconciliation, existing or newly created account alike, before the
// session is established.
func (r *Reconciler) OnBeforeAccountLogin(h Hook) {
	r.beforeLogin = append(r.beforeLogin, h)
}

func fireHooks(hooks []Hook, acct *user.Account, ident identity.ExternalIdentity) {
	for _, h := range hooks {
		h(acct, ident)
	}
}
