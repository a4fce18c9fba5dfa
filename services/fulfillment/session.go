package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Session TTL matches how long a user plausibly keeps the flow open,
// including a round trip to the external marketplace.
const sessionTTL = 30 * time.Minute

const sessionKeyPrefix = "fulfillment:"

// Session is the persisted part of a fulfillment flow. The machine state and
// the session markers that must survive a page navigation live here; live
// progress and timers stay in memory.
type Session struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	State     State  `json:"state"`
	CreatedAt int64  `json:"createdAt"`
}

// SessionStore persists fulfillment sessions.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessionStore keeps sessions as JSON values with a TTL.
type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal fulfillment session: %w", err)
	}
	if err := s.Client.Set(ctx, sessionKeyPrefix+session.SessionID, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store fulfillment session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.Client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, NewFlowError(CodeSessionNotFound, fmt.Sprintf("session introuvable ou expirée: %v", err))
	}
	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to parse fulfillment session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.Client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
