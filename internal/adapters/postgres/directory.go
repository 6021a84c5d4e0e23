// Package postgres implements the UserDirectory port over PostgreSQL.
// Accounts and groups live in Postgres; local sessions are delegated to
// the Redis session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	redisadapter "github.com/angellco/auth0-bridge/internal/adapters/redis"
	"github.com/angellco/auth0-bridge/internal/domain/user"
	"github.com/angellco/auth0-bridge/internal/ports"
)

// ErrAccountExists aliases the port sentinel Save wraps when the email or
// username is already taken. This is the storage-level uniqueness
// constraint the reconciliation engine delegates to.
var ErrAccountExists = ports.ErrAccountExists

// DirectoryOptions groups dependencies for Directory.
type DirectoryOptions struct {
	Pool            *pgxpool.Pool
	Sessions        *redisadapter.SessionStore
	SessionDuration time.Duration
}

// Directory is the production UserDirectory.
type Directory struct {
	pool            *pgxpool.Pool
	sessions        *redisadapter.SessionStore
	sessionDuration time.Duration
}

var _ ports.UserDirectory = (*Directory)(nil)

// NewDirectory constructs a Directory.
func NewDirectory(opts DirectoryOptions) *Directory {
	d := &Directory{
		pool:            opts.Pool,
		sessions:        opts.Sessions,
		sessionDuration: opts.SessionDuration,
	}
	if d.sessionDuration <= 0 {
		d.sessionDuration = 2 * time.Hour
	}
	return d
}

const accountColumns = `id, email, username, first_name, last_name, active`

// FindByEmailOrUsername matches q case-insensitively against account email
// or username. Returns nil, nil when no account matches.
func (d *Directory) FindByEmailOrUsername(ctx context.Context, q string) (*user.Account, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)
	`, q)

	var acct user.Account
	if err := row.Scan(&acct.ID, &acct.Email, &acct.Username, &acct.FirstName, &acct.LastName, &acct.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query account: %w", err)
	}

	groupIDs, err := d.groupIDs(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	acct.GroupIDs = groupIDs

	return &acct, nil
}

func (d *Directory) groupIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT group_id FROM user_group_assignments WHERE user_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query group assignments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scan group assignment: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate group assignments: %w", rowsErr)
	}
	return ids, nil
}

// NewDraft returns an unsaved account draft.
func (d *Directory) NewDraft() *user.Account { return &user.Account{} }

// Validate checks a draft before persistence.
func (d *Directory) Validate(draft *user.Account) error {
	if draft == nil {
		return errors.New("draft is required")
	}
	if strings.TrimSpace(draft.Email) == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(draft.Email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	if strings.TrimSpace(draft.Username) == "" {
		return errors.New("username is required")
	}
	return nil
}

// Save persists a draft, assigning it an id. Duplicate email/username
// surfaces as ErrAccountExists.
func (d *Directory) Save(ctx context.Context, draft *user.Account) error {
	id := uuid.NewString()
	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, first_name, last_name, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, draft.Email, draft.Username, draft.FirstName, draft.LastName, draft.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrAccountExists, draft.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	draft.ID = id
	return nil
}

// Activate marks a saved account active.
func (d *Directory) Activate(ctx context.Context, acct *user.Account) error {
	if _, err := d.pool.Exec(ctx,
		`UPDATE users SET active = TRUE, updated_at = now() WHERE id = $1`, acct.ID); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	acct.Active = true
	return nil
}

// GroupByHandle resolves a group by handle, or nil, nil when absent.
func (d *Directory) GroupByHandle(ctx context.Context, handle string) (*user.Group, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, handle, name FROM user_groups WHERE handle = $1`, handle)

	var g user.Group
	if err := row.Scan(&g.ID, &g.Handle, &g.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &g, nil
}

// AssignToGroups replaces the account's group assignments.
func (d *Directory) AssignToGroups(ctx context.Context, acct *user.Account, groups []user.Group) error {
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if _, delErr := tx.Exec(ctx,
			`DELETE FROM user_group_assignments WHERE user_id = $1`, acct.ID); delErr != nil {
			return fmt.Errorf("clear group assignments: %w", delErr)
		}
		for _, g := range groups {
			if _, insErr := tx.Exec(ctx, `
				INSERT INTO user_group_assignments (user_id, group_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, acct.ID, g.ID); insErr != nil {
				return fmt.Errorf("assign group %s: %w", g.Handle, insErr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	acct.GroupIDs = acct.GroupIDs[:0]
	for _, g := range groups {
		acct.GroupIDs = append(acct.GroupIDs, g.ID)
	}
	return nil
}

// AssignToDefaultGroup assigns the account to the directory's default
// group. Having no default group configured is not an error.
func (d *Directory) AssignToDefaultGroup(ctx context.Context, acct *user.Account) error {
	row := d.pool.QueryRow(ctx,
		`SELECT id, handle, name FROM user_groups WHERE is_default LIMIT 1`)

	var g user.Group
	if err := row.Scan(&g.ID, &g.Handle, &g.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("query default group: %w", err)
	}
	return d.AssignToGroups(ctx, acct, []user.Group{g})
}

// StartSession establishes a local session for the account.
func (d *Directory) StartSession(ctx context.Context, acct *user.Account, duration time.Duration) (*user.Session, error) {
	if duration <= 0 {
		duration = d.sessionDuration
	}
	sess := user.Session{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		Email:     acct.Email,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		ExpiresAt: time.Now().Add(duration),
	}
	if err := d.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &sess, nil
}

// EndSession destroys a local session.
func (d *Directory) EndSession(ctx context.Context, sessionID string) error {
	return d.sessions.Delete(ctx, sessionID)
}

// CurrentSessionUser resolves the account behind a live session, or
// nil, nil when the session is missing or expired.
func (d *Directory) CurrentSessionUser(ctx context.Context, sessionID string) (*user.Account, error) {
	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redisadapter.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return d.FindByEmailOrUsername(ctx, sess.Email)
}

// SessionDuration is the configured session lifetime.
func (d *Directory) SessionDuration() time.Duration { return d.sessionDuration }
