// Package auth contains simple hand-written test doubles for the SSO
// bridge ports. These are lightweight and suitable for unit tests without
// codegen.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
	"github.com/angellco/auth0-bridge/internal/domain/user"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.UserDirectory    = (*MemoryDirectory)(nil)
)

// MockIdentityProvider simulates the external identity provider with a
// fixed identity and deterministic login-state handling.
type MockIdentityProvider struct {
	CurrentIdentityFunc func(ctx context.Context, cs ports.CallbackState) (*identity.ExternalIdentity, error)
	BeginLoginFunc      func(ctx context.Context, returnURL string) (ports.LoginRedirect, error)

	// Identity is returned by CurrentIdentity when no override is set.
	// Nil simulates an absent provider session.
	Identity *identity.ExternalIdentity

	// AuthURL is the authorize URL BeginLogin hands back.
	AuthURL string

	// Domain feeds the logout URL.
	Domain          string
	ClientID        string
	LogoutReturnURL string

	// BeginCalls counts BeginLogin invocations; ReturnURLs records their
	// return-URL arguments.
	BeginCalls int
	ReturnURLs []string

	// EndedSessions records EndProviderSession callback states.
	EndedSessions []ports.CallbackState
}

// NewMockIdentityProvider creates a provider with a verified default identity.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		Identity: &identity.ExternalIdentity{
			Email:       "ada@example.com",
			DisplayName: "Ada Lovelace",
			Claims:      map[string]any{"sub": "auth0|ada"},
		},
		AuthURL:         "https://mock-idp/authorize",
		Domain:          "mock.example.com",
		ClientID:        "mock-client",
		LogoutReturnURL: "https://site.example/",
	}
}

func (m *MockIdentityProvider) CurrentIdentity(ctx context.Context, cs ports.CallbackState) (*identity.ExternalIdentity, error) {
	if m.CurrentIdentityFunc != nil {
		return m.CurrentIdentityFunc(ctx, cs)
	}
	return m.Identity, nil
}

func (m *MockIdentityProvider) BeginLogin(ctx context.Context, returnURL string) (ports.LoginRedirect, error) {
	if m.BeginLoginFunc != nil {
		return m.BeginLoginFunc(ctx, returnURL)
	}
	m.BeginCalls++
	m.ReturnURLs = append(m.ReturnURLs, returnURL)
	return ports.LoginRedirect{
		AuthURL: m.AuthURL,
		State:   fmt.Sprintf("state-%d", m.BeginCalls),
	}, nil
}

func (m *MockIdentityProvider) EndProviderSession(_ context.Context, cs ports.CallbackState) error {
	m.EndedSessions = append(m.EndedSessions, cs)
	return nil
}

func (m *MockIdentityProvider) ReturnURL(_ context.Context, _ ports.CallbackState) (string, error) {
	if len(m.ReturnURLs) == 0 {
		return "", nil
	}
	return m.ReturnURLs[len(m.ReturnURLs)-1], nil
}

func (m *MockIdentityProvider) LogoutURL() string {
	return fmt.Sprintf("https://%s/v2/logout?client_id=%s&returnTo=%s",
		m.Domain, m.ClientID, m.LogoutReturnURL)
}

// MemoryDirectory is an in-memory UserDirectory for unit tests.
type MemoryDirectory struct {
	// ValidateFunc and SaveFunc override the happy path to exercise
	// rejection behavior.
	ValidateFunc func(draft *user.Account) error
	SaveFunc     func(ctx context.Context, draft *user.Account) error

	// Groups is the set of resolvable groups, keyed by handle.
	Groups map[string]user.Group

	// GroupErr forces GroupByHandle to fail.
	GroupErr error

	// Duration is the configured session lifetime.
	Duration time.Duration

	accounts  map[string]*user.Account // keyed by lower(email)
	sessions  map[string]*user.Session
	nextID    int
	Defaulted []string // account ids given the default group assignment
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		Groups:   map[string]user.Group{},
		Duration: time.Hour,
		accounts: map[string]*user.Account{},
		sessions: map[string]*user.Session{},
	}
}

// Seed inserts an account directly, bypassing validation.
func (m *MemoryDirectory) Seed(acct user.Account) *user.Account {
	m.nextID++
	if acct.ID == "" {
		acct.ID = fmt.Sprintf("acct-%d", m.nextID)
	}
	stored := acct
	m.accounts[strings.ToLower(acct.Email)] = &stored
	return &stored
}

func (m *MemoryDirectory) FindByEmailOrUsername(_ context.Context, q string) (*user.Account, error) {
	q = strings.ToLower(q)
	if acct, ok := m.accounts[q]; ok {
		return acct, nil
	}
	for _, acct := range m.accounts {
		if strings.ToLower(acct.Username) == q {
			return acct, nil
		}
	}
	return nil, nil
}

func (m *MemoryDirectory) NewDraft() *user.Account { return &user.Account{} }

func (m *MemoryDirectory) Validate(draft *user.Account) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(draft)
	}
	if draft.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

func (m *MemoryDirectory) Save(ctx context.Context, draft *user.Account) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, draft)
	}
	key := strings.ToLower(draft.Email)
	if _, exists := m.accounts[key]; exists {
		return fmt.Errorf("%w: %s", ports.ErrAccountExists, draft.Email)
	}
	m.nextID++
	draft.ID = fmt.Sprintf("acct-%d", m.nextID)
	m.accounts[key] = draft
	return nil
}

func (m *MemoryDirectory) Activate(_ context.Context, acct *user.Account) error {
	acct.Active = true
	return nil
}

func (m *MemoryDirectory) GroupByHandle(_ context.Context, handle string) (*user.Group, error) {
	if m.GroupErr != nil {
		return nil, m.GroupErr
	}
	if g, ok := m.Groups[handle]; ok {
		return &g, nil
	}
	return nil, nil
}

func (m *MemoryDirectory) AssignToGroups(_ context.Context, acct *user.Account, groups []user.Group) error {
	acct.GroupIDs = acct.GroupIDs[:0]
	for _, g := range groups {
		acct.GroupIDs = append(acct.GroupIDs, g.ID)
	}
	return nil
}

func (m *MemoryDirectory) AssignToDefaultGroup(_ context.Context, acct *user.Account) error {
	m.Defaulted = append(m.Defaulted, acct.ID)
	return nil
}

func (m *MemoryDirectory) StartSession(_ context.Context, acct *user.Account, d time.Duration) (*user.Session, error) {
	m.nextID++
	sess := &user.Session{
		ID:        fmt.Sprintf("sess-%d", m.nextID),
		AccountID: acct.ID,
		Email:     acct.Email,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		ExpiresAt: time.Now().Add(d),
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *MemoryDirectory) EndSession(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryDirectory) CurrentSessionUser(_ context.Context, sessionID string) (*user.Account, error) {
	sess, ok := m.sessions[sessionID]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}
	return m.FindByEmailOrUsername(context.Background(), sess.Email)
}

func (m *MemoryDirectory) SessionDuration() time.Duration { return m.Duration }

// Sessions exposes the live session count for assertions.
func (m *MemoryDirectory) Sessions() int { return len(m.sessions) }

// Accounts exposes the stored account count for assertions.
func (m *MemoryDirectory) Accounts() int { return len(m.accounts) }
