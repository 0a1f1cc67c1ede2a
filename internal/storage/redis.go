package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// RedisStore keeps sessions as JSON documents with a sliding TTL, so several
// server processes can share one set of workspaces.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithTTL sets how long an untouched session lives. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "uiaudit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    24 * time.Hour,
		prefix: "uiaudit",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// NewRedisStoreFromURL parses a redis:// URL and checks the connection
func NewRedisStoreFromURL(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":session:" + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Set(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries when another writer touches
// the same session between WATCH and EXEC
const maxUpdateAttempts = 50

// Update runs fn inside a WATCH/MULTI/EXEC transaction on the session key and
// retries from a fresh read when another client wrote it first.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	key := s.key(id)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var (
			session *models.Session
			fnErr   error
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrNotFound
				}
				return fmt.Errorf("redis get failed: %w", err)
			}
			session = &models.Session{}
			if err := json.Unmarshal(data, session); err != nil {
				session = nil
				return fmt.Errorf("failed to unmarshal session: %w", err)
			}
			if fnErr = fn(session); fnErr != nil {
				return fnErr
			}
			data, err = json.Marshal(session)
			if err != nil {
				return fmt.Errorf("failed to marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return session, nil
		case fnErr != nil:
			return session, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Session, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return []*models.Session{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	sessions := make([]*models.Session, 0, len(vals))
	for _, v := range vals {
		// expired between SCAN and MGET
		str, ok := v.(string)
		if !ok {
			continue
		}
		var session models.Session
		if err := json.Unmarshal([]byte(str), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	sortSessions(sessions)
	return sessions, nil
}

// Close releases the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
