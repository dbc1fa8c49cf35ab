package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers the response to a keyed request so a client
// retry replays it instead of submitting twice.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
	// how long an in-flight claim survives a crashed handler
	claimTTL time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, claimTTL: time.Minute}
}

// ErrInProgress means another request with the same key has not finished.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

const pendingMarker = "pending"

func idemKey(scope, key string) string { return fmt.Sprintf("rc:idem:%s:%s", scope, key) }

// Claim reserves key. It returns a stored response to replay when the key
// already completed, ErrInProgress when it is still running, and (nil, nil)
// when the caller now owns the key and must Save or Release it.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (*StoredResponse, error) {
	k := idemKey(scope, key)
	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.claimTTL).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	b, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		return s.claimOnce(ctx, k)
	}
	if err != nil {
		return nil, err
	}
	return decodeStored(b)
}

func (s *IdempotencyStore) claimOnce(ctx context.Context, k string) (*StoredResponse, error) {
	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.claimTTL).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	return nil, ErrInProgress
}

func decodeStored(b []byte) (*StoredResponse, error) {
	if string(b) == pendingMarker {
		return nil, ErrInProgress
	}
	var sr StoredResponse
	if err := json.Unmarshal(b, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, scope, key string, resp StoredResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, idemKey(scope, key), b, s.ttl).Err()
}

// Release drops a claim so the client may retry after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, idemKey(scope, key)).Err()
}
