package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bot-chitieu/internal/wizard"
)

// DefaultSessionTTL is how long an idle conversation survives before the
// half-finished draft is discarded.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore keeps per-user wizard state in redis so a restart does not
// drop mid-conversation drafts.
type SessionStore struct {
	cache *Redis
	ttl   time.Duration
}

// NewSessionStore wraps the redis handle. A zero ttl falls back to the default.
func NewSessionStore(cache *Redis, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{cache: cache, ttl: ttl}
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:wizard:%s", userID)
}

// Load fetches the stored wizard state for a user. A missing session returns
// a fresh zero state, not an error.
func (s *SessionStore) Load(ctx context.Context, userID string) (wizard.State, error) {
	var state wizard.State
	raw, err := s.cache.Client().Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt session is unrecoverable; start over rather than loop.
		return wizard.State{}, nil
	}
	return state, nil
}

// Save persists the wizard state and refreshes the session TTL.
func (s *SessionStore) Save(ctx context.Context, userID string, state wizard.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.cache.Client().Set(ctx, sessionKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear drops the session, ending the conversation.
func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.cache.Client().Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
