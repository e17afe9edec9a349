// Package session is the Redis-backed store for refresh-token sessions.
// A record exists if and only if its refresh token is still valid: rotation,
// logout, and natural TTL expiry all remove it, and absence is the sole
// signal of invalidity. Rotation and logout run as single Lua scripts so the
// digest check and the key mutation are atomic per session key.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record exists for the session key:
	// the token was rotated away, logged out, or expired.
	ErrNotFound = errors.New("session not found")
	// ErrHashMismatch is returned when the presented token digest differs
	// from the stored one. On a live key this indicates replay or tampering.
	ErrHashMismatch = errors.New("session hash mismatch")
	// ErrUnavailable wraps Redis connectivity failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// DefaultPrefix is the session key namespace: refresh:<userId>:<sessionId>.
const DefaultPrefix = "refresh"

const (
	statusNotFound int64 = 0
	statusMismatch int64 = 1
	statusOK       int64 = 2
)

// rotateScript writes the successor record before deleting the predecessor,
// so a crash between the two steps leaves the user logged in rather than
// logged out. The stored record keeps its metadata; only the digest moves.
const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local rec = cjson.decode(data)
if rec.hash ~= ARGV[1] then
  return {1}
end
rec.hash = ARGV[2]
redis.call("SET", KEYS[2], cjson.encode(rec), "PX", ARGV[3])
redis.call("DEL", KEYS[1])
return {2, data}
`

var rotateLua = redis.NewScript(rotateScript)

// compareAndDeleteScript deletes the record only when the presented digest
// matches, closing the read-then-delete race between concurrent logout and
// refresh calls on the same key.
const compareAndDeleteScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local rec = cjson.decode(data)
if rec.hash ~= ARGV[1] then
  return 1
end
redis.call("DEL", KEYS[1])
return 2
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Store reads and writes session records in Redis. All instances across all
// server processes share one keyspace; nothing is cached process-side.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewStore creates a [Store]. prefix defaults to [DefaultPrefix]; timeout
// bounds every Redis call when positive.
func NewStore(client redis.UniversalClient, prefix string, timeout time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix, timeout: timeout}
}

func (s *Store) key(userID, sessionID string) string {
	return s.prefix + ":" + userID + ":" + sessionID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Save persists a new session record with the given TTL. The TTL must equal
// the refresh token's remaining validity window.
func (s *Store) Save(ctx context.Context, userID, sessionID string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(userID, sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get fetches a session record without mutating any state.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*Record, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Rotate atomically supersedes one session with its successor: it verifies
// the presented digest against the stored record, writes the same record
// under the successor key with the next digest, and deletes the predecessor
// key. Exactly one of any set of concurrent calls for the same key can
// succeed; the rest observe [ErrNotFound].
//
// The returned record is the successor (metadata carried over, digest
// replaced).
func (s *Store) Rotate(
	ctx context.Context,
	userID, sessionID, nextSessionID string,
	providedHash, nextHash string,
	ttl time.Duration,
) (*Record, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID, sessionID), s.key(userID, nextSessionID)},
		providedHash,
		nextHash,
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	switch code {
	case statusNotFound:
		return nil, ErrNotFound
	case statusMismatch:
		return nil, ErrHashMismatch
	case statusOK:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing rotate script payload", ErrUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid rotate script payload", ErrUnavailable)
		}

		var rec Record
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, err
		}
		rec.Hash = nextHash
		return &rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrUnavailable)
	}
}

// CompareAndDelete removes the session record if the presented digest
// matches the stored one. A second call for the same key returns
// [ErrNotFound], so logout is idempotent in effect.
func (s *Store) CompareAndDelete(ctx context.Context, userID, sessionID, providedHash string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	code, err := compareAndDeleteLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID, sessionID)},
		providedHash,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code {
	case statusNotFound:
		return ErrNotFound
	case statusMismatch:
		return ErrHashMismatch
	case statusOK:
		return nil
	default:
		return fmt.Errorf("%w: unknown delete script status", ErrUnavailable)
	}
}

// Ping reports point-in-time Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
