package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
)

// Compile-time check to ensure RedisStore implements SessionStore
var _ interfaces.SessionStore = (*RedisStore)(nil)

const (
	keyPrefix = "ems:selection:"

	// maxUpdateAttempts bounds optimistic retries when another writer touches the same session
	maxUpdateAttempts = 10
)

// ErrTooManyConflicts is returned when an update keeps losing to concurrent writers
var ErrTooManyConflicts = errors.New("selection session changed concurrently, retries exhausted")

// RedisStore shares sessions between instances behind a load balancer
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and checks the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a store on client whose sessions expire after ttl
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func (r *RedisStore) Create(ctx context.Context) (*interfaces.Session, error) {
	s := newSession(time.Now().UTC())
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session %s: %w", s.ID, err)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*interfaces.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	return decodeSession(id, data)
}

func decodeSession(id string, data []byte) (*interfaces.Session, error) {
	var s interfaces.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

// Save overwrites the session with SET XX, so a session deleted meanwhile stays deleted
func (r *RedisStore) Save(ctx context.Context, session *interfaces.Session) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}

	ok, err := r.client.SetXX(ctx, sessionKey(session.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Update runs fn inside a WATCH transaction and retries when the key changed underneath it
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*interfaces.Session) error) (*interfaces.Session, error) {
	key := sessionKey(id)
	var updated *interfaces.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", id, err)
		}

		s, err := decodeSession(id, data)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = time.Now().UTC()

		encoded, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetXX(ctx, key, encoded, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = s
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	logging.Warn("Session update kept conflicting", "id", id, "attempts", maxUpdateAttempts)
	return nil, ErrTooManyConflicts
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Count scans the session keyspace. Errors are logged and reported as zero.
func (r *RedisStore) Count(ctx context.Context) int {
	n := 0
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		logging.Warn("Failed to count redis sessions", "error", err)
		return 0
	}
	return n
}
