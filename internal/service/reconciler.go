package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/domain/user"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// ReconcilerOptions groups dependencies for Reconciler.
type ReconcilerOptions struct {
	Provider  ports.IdentityProvider
	Directory ports.UserDirectory

	// UserGroupHandle is the optional target group for newly created
	// accounts. Empty means the directory's default assignment.
	UserGroupHandle string

	Logger *slog.Logger
}

// Reconciler maps a verified external identity onto a local account and
// establishes a session: reuse the account matching the identity's email,
// or create, activate, and group a new one. Extension hooks observe and
// may mutate the account before creation and before login.
type Reconciler struct {
	provider    ports.IdentityProvider
	directory   ports.UserDirectory
	groupHandle string
	logger      *slog.Logger

	beforeCreated []Hook
	beforeLogin   []Hook
}

// NewReconciler constructs a new Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		provider:    opts.Provider,
		directory:   opts.Directory,
		groupHandle: opts.UserGroupHandle,
		logger:      opts.Logger,
	}
}

func (r *Reconciler) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// HandleCallback runs one reconciliation pass for an inbound provider
// callback. Expected outcomes (no identity, creation rejected) are reported
// in the Outcome with a nil error; collaborator faults return a non-nil
// error and the request is abandoned without retry.
func (r *Reconciler) HandleCallback(ctx context.Context, cs ports.CallbackState) (identity.Outcome, error) {
	ident, err := r.provider.CurrentIdentity(ctx, cs)
	if err != nil {
		return identity.Outcome{}, fmt.Errorf("resolve external identity: %w", err)
	}
	if ident == nil {
		// Provider session missing, expired, or invalid. Normal outcome.
		return identity.Outcome{Decision: identity.DecisionNoIdentity}, nil
	}

	acct, err := r.directory.FindByEmailOrUsername(ctx, ident.Email)
	if err != nil {
		return identity.Outcome{}, fmt.Errorf("look up account: %w", err)
	}

	decision := identity.DecisionAccountReused
	if acct == nil {
		created, rejected, createErr := r.createAccount(ctx, *ident)
		if createErr != nil {
			return identity.Outcome{}, createErr
		}
		if rejected {
			return identity.Outcome{Decision: identity.DecisionCreationRejected}, nil
		}
		acct = created
		decision = identity.DecisionAccountCreated
	}

	// Existing accounts are reused as-is, inactive ones included; the
	// activation state is deliberately not re-checked here.
	fireHooks(r.beforeLogin, acct, *ident)

	sess, err := r.directory.StartSession(ctx, acct, r.directory.SessionDuration())
	if err != nil {
		return identity.Outcome{}, fmt.Errorf("establish session: %w", err)
	}

	return identity.Outcome{Decision: decision, Account: acct, Session: sess}, nil
}

// createAccount builds, validates, persists, activates, and groups a new
// account for the identity. rejected reports a validation failure or a
// duplicate-account refusal, which aborts the request without a fault;
// any other persistence error propagates.
func (r *Reconciler) createAccount(ctx context.Context, ident identity.ExternalIdentity) (acct *user.Account, rejected bool, err error) {
	draft := r.directory.NewDraft()
	draft.Email = ident.Email
	draft.Username = ident.Email

	// Default names from the display name; hooks may override them.
	draft.FirstName, draft.LastName = identity.SplitDisplayName(ident.DisplayName)

	fireHooks(r.beforeCreated, draft, ident)

	if vErr := r.directory.Validate(draft); vErr != nil {
		r.log().WarnContext(ctx, "account draft rejected", "email", draft.Email, "error", vErr)
		return nil, true, nil
	}
	if sErr := r.directory.Save(ctx, draft); sErr != nil {
		if errors.Is(sErr, ports.ErrAccountExists) {
			r.log().WarnContext(ctx, "account save rejected", "email", draft.Email, "error", sErr)
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("save account: %w", sErr)
	}

	// The identity was already verified externally, so skip any email
	// confirmation workflow.
	if aErr := r.directory.Activate(ctx, draft); aErr != nil {
		return nil, false, fmt.Errorf("activate account: %w", aErr)
	}

	r.assignGroups(ctx, draft)

	return draft, false, nil
}

// assignGroups places the new account in the configured group, falling back
// to the directory default. Group resolution failures are not fatal to the
// login; they are logged and the default assignment applies.
func (r *Reconciler) assignGroups(ctx context.Context, acct *user.Account) {
	if r.groupHandle != "" {
		group, err := r.directory.GroupByHandle(ctx, r.groupHandle)
		if err != nil {
			r.log().WarnContext(ctx, "resolve user group failed, using default assignment",
				"handle", r.groupHandle, "error", err)
		} else if group != nil {
			if err := r.directory.AssignToGroups(ctx, acct, []user.Group{*group}); err != nil {
				r.log().WarnContext(ctx, "assign user group failed, using default assignment",
					"handle", r.groupHandle, "error", err)
			} else {
				return
			}
		}
	}

	if err := r.directory.AssignToDefaultGroup(ctx, acct); err != nil {
		r.log().WarnContext(ctx, "default group assignment failed", "error", err)
	}
}

// Logout ends the local session, discards the provider session, and returns
// the provider logout URL the browser should be redirected to.
func (r *Reconciler) Logout(ctx context.Context, localSessionID string, cs ports.CallbackState) (string, error) {
	if localSessionID != "" {
		if err := r.directory.EndSession(ctx, localSessionID); err != nil {
			return "", fmt.Errorf("end local session: %w", err)
		}
	}
	if err := r.provider.EndProviderSession(ctx, cs); err != nil {
		return "", fmt.Errorf("end provider session: %w", err)
	}
	return r.provider.LogoutURL(), nil
}
