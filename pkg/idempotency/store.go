package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/ryzan/ryzan_service/internal/infrastructure/cache"
)

const (
	// DefaultTTL is how long a completed response is replayable
	DefaultTTL = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key
	inFlightTTL = 5 * time.Minute

	keyPrefix = "idempotency:"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{8,128}$`)

// Record is what gets stored under an idempotency key.
type Record struct {
	RequestHash    string `json:"request_hash"`
	InFlight       bool   `json:"in_flight"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ResponseBody   []byte `json:"response_body,omitempty"`
}

// Store persists idempotency records.
type Store interface {
	// Reserve claims key for a new request. When the key is already held it
	// returns the existing record and false.
	Reserve(ctx context.Context, key, requestHash string) (*Record, bool, error)
	Complete(ctx context.Context, key string, rec *Record) error
	Release(ctx context.Context, key string) error
}

// RedisStore implements Store on top of the shared Redis client.
type RedisStore struct {
	redis cache.RedisClient
	ttl   time.Duration
}

func NewRedisStore(redis cache.RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) Reserve(ctx context.Context, key, requestHash string) (*Record, bool, error) {
	ok, err := s.redis.SetNX(ctx, keyPrefix+key, Record{RequestHash: requestHash, InFlight: true}, inFlightTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	var existing Record
	if err := s.redis.Get(ctx, keyPrefix+key, &existing); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			// expired between SETNX and GET; let the caller retry
			return &Record{RequestHash: requestHash, InFlight: true}, false, nil
		}
		return nil, false, fmt.Errorf("failed to load idempotency key: %w", err)
	}
	return &existing, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec *Record) error {
	return s.redis.Set(ctx, keyPrefix+key, rec, s.ttl)
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.redis.Del(ctx, keyPrefix+key)
}

// ValidateKey checks the client-supplied key format.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("key must be 8-128 characters of [A-Za-z0-9_-:.]")
	}
	return nil
}

// ReadBody reads at most limit bytes, failing if the body is larger.
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("request body exceeds %d bytes", limit)
	}
	return data, nil
}

// HashRequest fingerprints the request so a reused key with a different
// payload can be rejected.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
