package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angellco/auth0-bridge/internal/domain/user"
)

func TestDirectory_Validate(t *testing.T) {
	d := NewDirectory(DirectoryOptions{})

	tests := []struct {
		name    string
		draft   *user.Account
		wantErr string
	}{
		{
			name:  "valid draft",
			draft: &user.Account{Email: "ada@example.com", Username: "ada@example.com"},
		},
		{
			name:    "nil draft",
			draft:   nil,
			wantErr: "draft is required",
		},
		{
			name:    "missing email",
			draft:   &user.Account{Username: "ada"},
			wantErr: "email is required",
		},
		{
			name:    "malformed email",
			draft:   &user.Account{Email: "not-an-email", Username: "ada"},
			wantErr: "invalid email",
		},
		{
			name:    "missing username",
			draft:   &user.Account{Email: "ada@example.com"},
			wantErr: "username is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Validate(tt.draft)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDirectory_SessionDurationDefault(t *testing.T) {
	d := NewDirectory(DirectoryOptions{})
	assert.Equal(t, 2*time.Hour, d.SessionDuration())

	d = NewDirectory(DirectoryOptions{SessionDuration: 30 * time.Minute})
	assert.Equal(t, 30*time.Minute, d.SessionDuration())
}

func TestDirectory_NewDraftIsEmpty(t *testing.T) {
	d := NewDirectory(DirectoryOptions{})
	draft := d.NewDraft()
	require.NotNil(t, draft)
	assert.Empty(t, draft.ID)
	assert.Empty(t, draft.Email)
	assert.False(t, draft.Active)
}
