// Package user contains domain-level types for the local account directory.
package user

import "time"

// Account is the locally persisted CMS user record. At most one account
// exists per email; the directory's storage enforces that.
type Account struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`

	// GroupIDs lists the ids of the groups the account belongs to.
	GroupIDs []string `json:"group_ids"`
}

// Group is a named user group an account can be assigned to.
type Group struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

// Session is the server-side record kept for a logged-in account.
// ID is an opaque identifier handed to the browser in a cookie.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ReturnURL string    `json:"return_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
