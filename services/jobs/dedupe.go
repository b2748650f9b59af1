package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenSet remembers posting ids across runs so a posting scraped
// yesterday is not processed again today. Backed by redis because
// several sync jobs may run against the same set.
type SeenSet struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSeenSet(rdb *redis.Client, ttl time.Duration) SeenSet {
	return SeenSet{rdb: rdb, ttl: ttl}
}

func seenKey(postingID string) string {
	return "jobs:seen:" + postingID
}

// Seen marks the posting and reports whether it was already there.
func (s SeenSet) Seen(ctx context.Context, postingID string) (bool, error) {
	created, err := s.rdb.SetNX(ctx, seenKey(postingID), 1, s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

// Forget drops the mark, used when a posting should be re-processed.
func (s SeenSet) Forget(ctx context.Context, postingID string) error {
	return s.rdb.Del(ctx, seenKey(postingID)).Err()
}
