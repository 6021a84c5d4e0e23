package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// SilentLoginRequest carries the page-request signals the evaluator
// inspects: the referrer header, the query parameters, the provider
// callback state derived from cookies, and the URL to return to after a
// triggered login.
type SilentLoginRequest struct {
	Referrer  string
	Query     url.Values
	Callback  ports.CallbackState
	ReturnURL string
}

// EvaluateSilentLogin decides, without any user interaction, whether the
// request should be reconciled into a local session, redirected to the
// provider login, or left alone.
//
// An active provider session that reconciles successfully wins outright and
// bypasses the whitelists. Otherwise the referrer whitelist is tried first
// (case-insensitive substring, first match wins), then the query-parameter
// groups. Every matching parameter group issues its own login call, so the
// redirect returned is the one from the last matching group. An empty
// policy opts out entirely.
func (r *Reconciler) EvaluateSilentLogin(ctx context.Context, req SilentLoginRequest, policy identity.SilentLoginPolicy) (identity.Action, error) {
	outcome, err := r.HandleCallback(ctx, req.Callback)
	if err != nil {
		return identity.Action{}, fmt.Errorf("silent callback: %w", err)
	}
	if outcome.LoggedIn() {
		return identity.Action{Kind: identity.ActionAlreadyAuthenticated, Outcome: outcome}, nil
	}

	if policy.Empty() {
		return identity.Action{Kind: identity.ActionNone}, nil
	}

	if referrerMatches(req.Referrer, policy.ReferrerWhitelist) {
		redirect, err := r.provider.BeginLogin(ctx, req.ReturnURL)
		if err != nil {
			return identity.Action{}, fmt.Errorf("begin silent login: %w", err)
		}
		return identity.Action{
			Kind:        identity.ActionTriggerLogin,
			RedirectURL: redirect.AuthURL,
			LoginState:  redirect.State,
		}, nil
	}

	action := identity.Action{Kind: identity.ActionNone}
	for _, group := range policy.QueryParamWhitelist {
		if !groupMatches(req.Query, group) {
			continue
		}
		redirect, err := r.provider.BeginLogin(ctx, req.ReturnURL)
		if err != nil {
			return identity.Action{}, fmt.Errorf("begin silent login: %w", err)
		}
		action = identity.Action{
			Kind:        identity.ActionTriggerLogin,
			RedirectURL: redirect.AuthURL,
			LoginState:  redirect.State,
		}
	}

	return action, nil
}

func referrerMatches(referrer string, whitelist []string) bool {
	if referrer == "" {
		return false
	}
	ref := strings.ToLower(referrer)
	for _, entry := range whitelist {
		if entry == "" {
			continue
		}
		if strings.Contains(ref, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

func groupMatches(query url.Values, group identity.ParamGroup) bool {
	if len(group) == 0 {
		return false
	}
	for name, want := range group {
		if query.Get(name) != want {
			return false
		}
	}
	return true
}
