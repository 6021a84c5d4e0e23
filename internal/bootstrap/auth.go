package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/angellco/auth0-bridge/config"
	"github.com/angellco/auth0-bridge/internal/adapters/auth0"
	"github.com/angellco/auth0-bridge/internal/adapters/postgres"
	redisadapter "github.com/angellco/auth0-bridge/internal/adapters/redis"
	"github.com/angellco/auth0-bridge/internal/ports"
	"github.com/angellco/auth0-bridge/internal/service"
)

// AuthConfig contains configuration for the auth stack.
type AuthConfig struct {
	Auth0       config.Auth0Config
	RedisClient redis.UniversalClient
	Pool        *pgxpool.Pool
	Logger      *slog.Logger
}

// AuthStack bundles the wired auth collaborators for the HTTP layer.
type AuthStack struct {
	Reconciler *service.Reconciler
	Provider   ports.IdentityProvider
	Directory  ports.UserDirectory
}

// BuildAuth wires the Auth0 client, the Redis-backed stores, the PostgreSQL
// user directory, and the reconciliation service. Tenant discovery runs here,
// so startup fails fast on a misconfigured or unreachable tenant.
func BuildAuth(ctx context.Context, cfg AuthConfig) (*AuthStack, error) {
	if err := cfg.Auth0.Validate(); err != nil {
		return nil, fmt.Errorf("auth0 config: %w", err)
	}

	providerStore := redisadapter.NewProviderStore(cfg.RedisClient)

	client, err := auth0.NewClient(ctx, auth0.ClientConfig{
		Domain:          cfg.Auth0.Domain,
		ClientID:        cfg.Auth0.ClientID,
		ClientSecret:    cfg.Auth0.ClientSecret,
		CallbackURL:     cfg.Auth0.CallbackURL,
		LogoutReturnURL: cfg.Auth0.LogoutReturnURL,
		Scope:           cfg.Auth0.Scope,
		SessionTTL:      cfg.Auth0.SessionDuration,
		Store:           providerStore,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth0 client: %w", err)
	}

	sessionStore := redisadapter.NewSessionStore(cfg.RedisClient)

	directory := postgres.NewDirectory(postgres.DirectoryOptions{
		Pool:            cfg.Pool,
		Sessions:        sessionStore,
		SessionDuration: cfg.Auth0.SessionDuration,
	})

	reconciler := service.NewReconciler(service.ReconcilerOptions{
		Provider:        client,
		Directory:       directory,
		UserGroupHandle: cfg.Auth0.UserGroupHandle,
		Logger:          cfg.Logger,
	})

	return &AuthStack{
		Reconciler: reconciler,
		Provider:   client,
		Directory:  directory,
	}, nil
}
