package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyTTL outlives any realistic retry horizon for a single document.
const keyTTL = 30 * 24 * time.Hour

// idempotencyStore is the only state shared across retries of the same
// document. A claim gives one writer at a time the right to call the PAC for
// a document; a recorded UUID short-circuits any duplicate stamp attempt.
type idempotencyStore struct {
	rdb *redis.Client
}

func newIdempotencyStore(rdb *redis.Client) *idempotencyStore {
	return &idempotencyStore{rdb: rdb}
}

// idempotencyKey derives the stable per-detail key sent to the PAC. Same
// detail and payload, same key: the provider can dedupe even if our record
// of the outcome was lost.
func idempotencyKey(detailID snowflake.ID, xmlPayload string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%x", detailID, sha256.Sum256([]byte(xmlPayload)))))
	return hex.EncodeToString(sum[:])
}

func (s *idempotencyStore) claim(ctx context.Context, documentID snowflake.ID) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "stamp:claim:"+documentID.String(), "1", time.Minute).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *idempotencyStore) release(ctx context.Context, documentID snowflake.ID) {
	s.rdb.Del(ctx, "stamp:claim:"+documentID.String())
}

func (s *idempotencyStore) recordedUUID(ctx context.Context, key string) (*uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, "stamp:uuid:"+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (s *idempotencyStore) recordUUID(ctx context.Context, key string, stampUUID uuid.UUID) error {
	return s.rdb.Set(ctx, "stamp:uuid:"+key, stampUUID.String(), keyTTL).Err()
}
