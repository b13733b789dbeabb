// Package dedup caches fingerprints of recently submitted complaint text in
// Redis so repeat submissions resolve to their canonical complaint without a
// full similarity scan. The cache is an accelerator only: intake re-verifies
// every hit against the registry, so a cold or unreachable cache just means a
// slower duplicate check, never a wrong answer.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/textnorm"
)

const (
	// keyPrefix namespaces recent-submission entries in Redis.
	keyPrefix = "complaints:recent:"

	// DefaultTTL keeps a fingerprint around long enough to absorb the burst
	// of reports a fresh incident generates.
	DefaultTTL = 24 * time.Hour
)

// Tracker maps fingerprints of normalized submission text to the complaint
// they last resolved to.
type Tracker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logging.Logger
}

// NewTracker creates a tracker writing entries with the given TTL.
// A nil client yields an inert tracker that always misses.
func NewTracker(client redis.UniversalClient, ttl time.Duration, log logging.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Tracker{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// Fingerprint returns the cache key suffix for a complaint text. Texts that
// normalize identically share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(textnorm.Clean(text)))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the complaint id recorded for text. Cache misses and Redis
// failures both report not-found; failures are logged, never surfaced.
func (t *Tracker) Lookup(ctx context.Context, text string) (string, bool) {
	if t == nil || t.client == nil {
		return "", false
	}

	key := keyPrefix + Fingerprint(text)

	id, err := t.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.Warn("recent-submission lookup failed",
				logging.String("redis_key", key),
				logging.Error(err),
			)
		}
		return "", false
	}

	return id, id != ""
}

// Remember records that text resolved to the given complaint.
func (t *Tracker) Remember(ctx context.Context, text, complaintID string) {
	if t == nil || t.client == nil {
		return
	}

	key := keyPrefix + Fingerprint(text)

	if err := t.client.Set(ctx, key, complaintID, t.ttl).Err(); err != nil {
		t.logger.Warn("recent-submission record failed",
			logging.String("redis_key", key),
			logging.String("complaint_id", complaintID),
			logging.Error(err),
		)
	}
}

// Forget drops the entry for text, if any. Intake calls this when a cached
// complaint turns out to be gone or no longer open.
func (t *Tracker) Forget(ctx context.Context, text string) {
	if t == nil || t.client == nil {
		return
	}

	key := keyPrefix + Fingerprint(text)

	if err := t.client.Del(ctx, key).Err(); err != nil {
		t.logger.Warn("recent-submission delete failed",
			logging.String("redis_key", key),
			logging.Error(err),
		)
	}
}
