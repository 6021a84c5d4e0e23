package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angellco/auth0-bridge/internal/adapters/auth0"
)

// ProviderStore is a Redis-backed auth0.Store holding pending login states
// and cached provider sessions.
type ProviderStore struct {
	client        redis.UniversalClient
	statePrefix   string
	sessionPrefix string
}

var _ auth0.Store = (*ProviderStore)(nil)

// NewProviderStore creates a new Redis-backed provider store.
func NewProviderStore(client redis.UniversalClient) *ProviderStore {
	return &ProviderStore{
		client:        client,
		statePrefix:   "auth0:state:",
		sessionPrefix: "auth0:session:",
	}
}

func (s *ProviderStore) SaveLoginState(ctx context.Context, state string, ls auth0.LoginState, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	data, err := json.Marshal(ls)
	if err != nil {
		return fmt.Errorf("marshal login state: %w", err)
	}
	return s.client.Set(ctx, s.statePrefix+state, data, ttl).Err()
}

// TakeLoginState consumes the login state atomically so a state value
// cannot complete two callbacks.
func (s *ProviderStore) TakeLoginState(ctx context.Context, state string) (*auth0.LoginState, error) {
	if state == "" {
		return nil, nil
	}
	data, err := s.client.GetDel(ctx, s.statePrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis getdel: %w", err)
	}

	var ls auth0.LoginState
	if unmarshalErr := json.Unmarshal([]byte(data), &ls); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal login state: %w", unmarshalErr)
	}
	return &ls, nil
}

func (s *ProviderStore) SaveSession(ctx context.Context, id string, ps auth0.ProviderSession, ttl time.Duration) error {
	if id == "" {
		return errors.New("session id cannot be empty")
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("marshal provider session: %w", err)
	}
	return s.client.Set(ctx, s.sessionPrefix+id, data, ttl).Err()
}

func (s *ProviderStore) GetSession(ctx context.Context, id string) (*auth0.ProviderSession, error) {
	if id == "" {
		return nil, nil
	}
	data, err := s.client.Get(ctx, s.sessionPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var ps auth0.ProviderSession
	if unmarshalErr := json.Unmarshal([]byte(data), &ps); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal provider session: %w", unmarshalErr)
	}
	return &ps, nil
}

func (s *ProviderStore) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.sessionPrefix+id).Err()
}
