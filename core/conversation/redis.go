package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis so conversations survive restarts
// and can be shared by multiple bot processes. Idle eviction is delegated
// to key TTLs: every Put refreshes the expiry.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption customises a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix overrides the key prefix for session entries.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL sets the idle expiry applied on every write. Zero keeps sessions
// until deleted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore connects a session store to the given Redis instance.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient wraps an existing client, mainly for tests.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "edubot:session:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(principalID int64) string {
	return s.prefix + strconv.FormatInt(principalID, 10)
}

// Get loads and decodes the principal's session, or returns (nil, nil).
func (s *RedisStore) Get(ctx context.Context, principalID int64) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(principalID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	if sess.Attrs == nil {
		sess.Attrs = NewAttrs()
	}
	return &sess, nil
}

// Put encodes and stores the session, refreshing the idle TTL.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("conversation: encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.PrincipalID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: redis set: %w", err)
	}
	return nil
}

// Delete removes the principal's session.
func (s *RedisStore) Delete(ctx context.Context, principalID int64) error {
	if err := s.client.Del(ctx, s.key(principalID)).Err(); err != nil {
		return fmt.Errorf("conversation: redis del: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
