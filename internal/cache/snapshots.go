// Package cache holds the Redis layer in front of the export-state store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshots caches export fingerprints keyed by customer and list. Entries
// expire so a lost invalidation only costs one redundant export, never a
// permanently stale skip.
type Snapshots struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshots creates the cache. ttl <= 0 defaults to 24h.
func NewSnapshots(client *redis.Client, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Snapshots{client: client, ttl: ttl}
}

func fingerprintKey(customerID, listID string) string {
	return fmt.Sprintf("export:fp:%s:%s", listID, customerID)
}

// GetFingerprint returns the cached fingerprint, if any.
func (s *Snapshots) GetFingerprint(ctx context.Context, customerID, listID string) (string, bool, error) {
	fp, err := s.client.Get(ctx, fingerprintKey(customerID, listID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return fp, true, nil
}

// SetFingerprint stores a fingerprint with the configured TTL.
func (s *Snapshots) SetFingerprint(ctx context.Context, customerID, listID, fp string) error {
	if err := s.client.Set(ctx, fingerprintKey(customerID, listID), fp, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// DeleteFingerprint drops a cached fingerprint.
func (s *Snapshots) DeleteFingerprint(ctx context.Context, customerID, listID string) error {
	if err := s.client.Del(ctx, fingerprintKey(customerID, listID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
