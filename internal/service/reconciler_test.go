package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/domain/user"
	mocks "github.com/angellco/auth0-bridge/internal/mocks/auth"
	"github.com/angellco/auth0-bridge/internal/ports"
)

func newTestReconciler(provider *mocks.MockIdentityProvider, dir *mocks.MemoryDirectory, groupHandle string) *Reconciler {
	return NewReconciler(ReconcilerOptions{
		Provider:        provider,
		Directory:       dir,
		UserGroupHandle: groupHandle,
	})
}

func TestReconciler_HandleCallback_NoIdentity(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.Identity = nil
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionNoIdentity, outcome.Decision)
	assert.Nil(t, outcome.Account)
	assert.Nil(t, outcome.Session)
	assert.Equal(t, 0, dir.Accounts())
	assert.Equal(t, 0, dir.Sessions())
}

func TestReconciler_HandleCallback_CreatesAccount(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{Code: "c", State: "s"})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountCreated, outcome.Decision)
	require.NotNil(t, outcome.Account)
	assert.Equal(t, "ada@example.com", outcome.Account.Email)
	assert.Equal(t, "ada@example.com", outcome.Account.Username)
	assert.Equal(t, "Ada", outcome.Account.FirstName)
	assert.Equal(t, "Lovelace", outcome.Account.LastName)
	assert.True(t, outcome.Account.Active)
	require.NotNil(t, outcome.Session)
	assert.Equal(t, outcome.Account.ID, outcome.Session.AccountID)
	assert.Equal(t, 1, dir.Sessions())
}

func TestReconciler_HandleCallback_ReusesExistingAccount(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	existing := dir.Seed(user.Account{Email: "ada@example.com", Username: "ada@example.com", Active: true})

	r := newTestReconciler(provider, dir, "")

	createdFired := false
	r.OnBeforeAccountCreated(func(_ *user.Account, _ identity.ExternalIdentity) {
		createdFired = true
	})

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountReused, outcome.Decision)
	assert.Equal(t, existing.ID, outcome.Account.ID)
	assert.False(t, createdFired, "creation hook must not fire on the reuse path")
	assert.Equal(t, 1, dir.Accounts())
	assert.Equal(t, 1, dir.Sessions())
}

func TestReconciler_HandleCallback_LookupIsCaseInsensitive(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.Identity.Email = "ADA@example.com"
	dir := mocks.NewMemoryDirectory()
	existing := dir.Seed(user.Account{Email: "ada@example.com", Username: "ada@example.com"})

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountReused, outcome.Decision)
	assert.Equal(t, existing.ID, outcome.Account.ID)
}

func TestReconciler_HandleCallback_InactiveAccountStillReused(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.Seed(user.Account{Email: "ada@example.com", Username: "ada@example.com", Active: false})

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountReused, outcome.Decision)
	assert.False(t, outcome.Account.Active)
	assert.Equal(t, 1, dir.Sessions())
}

func TestReconciler_HandleCallback_SingleTokenNameLeftUnset(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.Identity.DisplayName = "Ada"
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Empty(t, outcome.Account.FirstName)
	assert.Empty(t, outcome.Account.LastName)
}

func TestReconciler_HandleCallback_ValidationFailureRejectsCreation(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.ValidateFunc = func(_ *user.Account) error {
		return errors.New("email domain not allowed")
	}

	r := newTestReconciler(provider, dir, "")

	loginFired := false
	r.OnBeforeAccountLogin(func(_ *user.Account, _ identity.ExternalIdentity) {
		loginFired = true
	})

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionCreationRejected, outcome.Decision)
	assert.False(t, loginFired)
	assert.Equal(t, 0, dir.Accounts())
	assert.Equal(t, 0, dir.Sessions())
}

func TestReconciler_HandleCallback_DuplicateSaveRejectsCreation(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.SaveFunc = func(_ context.Context, draft *user.Account) error {
		return fmt.Errorf("%w: %s", ports.ErrAccountExists, draft.Email)
	}

	r := newTestReconciler(provider, dir, "")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionCreationRejected, outcome.Decision)
	assert.Equal(t, 0, dir.Sessions())
}

func TestReconciler_HandleCallback_SaveFaultPropagates(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.SaveFunc = func(_ context.Context, _ *user.Account) error {
		return errors.New("dial tcp: connection refused")
	}

	r := newTestReconciler(provider, dir, "")

	_, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save account")
	assert.Equal(t, 0, dir.Sessions())
}

func TestReconciler_HandleCallback_HookOrderOnCreatePath(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")

	var order []string
	r.OnBeforeAccountCreated(func(acct *user.Account, _ identity.ExternalIdentity) {
		order = append(order, "created")
		assert.Empty(t, acct.ID, "draft must not be persisted before the creation hook")
	})
	r.OnBeforeAccountLogin(func(acct *user.Account, _ identity.ExternalIdentity) {
		order = append(order, "login")
		assert.NotEmpty(t, acct.ID, "account must be persisted before the login hook")
		assert.Equal(t, 0, dir.Sessions(), "no session may exist before the login hook")
	})

	_, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"created", "login"}, order)
}

func TestReconciler_HandleCallback_HooksMutateDraft(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.Identity.DisplayName = "Ada Lovelace"
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")
	r.OnBeforeAccountCreated(func(acct *user.Account, ident identity.ExternalIdentity) {
		acct.FirstName = "Countess"
		if sub, ok := ident.Claims["sub"].(string); ok {
			acct.Username = sub
		}
	})

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, "Countess", outcome.Account.FirstName)
	assert.Equal(t, "Lovelace", outcome.Account.LastName)
	assert.Equal(t, "auth0|ada", outcome.Account.Username)
}

func TestReconciler_HandleCallback_AssignsConfiguredGroup(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.Groups["members"] = user.Group{ID: "grp-1", Handle: "members", Name: "Members"}

	r := newTestReconciler(provider, dir, "members")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"grp-1"}, outcome.Account.GroupIDs)
	assert.Empty(t, dir.Defaulted)
}

func TestReconciler_HandleCallback_UnknownGroupFallsBackToDefault(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "missing")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountCreated, outcome.Decision)
	assert.Equal(t, []string{outcome.Account.ID}, dir.Defaulted)
}

func TestReconciler_HandleCallback_GroupResolutionErrorIsNonFatal(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	dir := mocks.NewMemoryDirectory()
	dir.GroupErr = errors.New("directory unavailable")

	r := newTestReconciler(provider, dir, "members")

	outcome, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.NoError(t, err)
	assert.Equal(t, identity.DecisionAccountCreated, outcome.Decision)
	assert.Equal(t, 1, dir.Sessions())
	assert.Equal(t, []string{outcome.Account.ID}, dir.Defaulted)
}

func TestReconciler_HandleCallback_ProviderFaultPropagates(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.CurrentIdentityFunc = func(_ context.Context, _ ports.CallbackState) (*identity.ExternalIdentity, error) {
		return nil, errors.New("idp unreachable")
	}
	dir := mocks.NewMemoryDirectory()

	r := newTestReconciler(provider, dir, "")

	_, err := r.HandleCallback(context.Background(), ports.CallbackState{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve external identity")
	assert.Contains(t, err.Error(), "idp unreachable")
}

func TestReconciler_Logout_ReturnsProviderURL(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	provider.Domain = "x.example.com"
	provider.ClientID = "abc"
	provider.LogoutReturnURL = "https://site.example/"
	dir := mocks.NewMemoryDirectory()
	acct := dir.Seed(user.Account{Email: "ada@example.com"})
	sess, err := dir.StartSession(context.Background(), acct, dir.SessionDuration())
	require.NoError(t, err)

	r := newTestReconciler(provider, dir, "")

	url, err := r.Logout(context.Background(), sess.ID, ports.CallbackState{SessionID: "prov-1"})

	require.NoError(t, err)
	assert.Equal(t, "https://x.example.com/v2/logout?client_id=abc&returnTo=https://site.example/", url)
	assert.Equal(t, 0, dir.Sessions())
	require.Len(t, provider.EndedSessions, 1)
	assert.Equal(t, "prov-1", provider.EndedSessions[0].SessionID)
}
