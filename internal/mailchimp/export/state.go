package export

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/listsync/internal/mailchimp"
)

var _ mailchimp.ExportState = (*StateService)(nil)

// StateStore is the durable record of what was last exported per customer,
// plus the segment id mappings.
type StateStore interface {
	Fingerprint(ctx context.Context, customerID, listID string) (fp string, ok bool, err error)
	SaveFingerprint(ctx context.Context, customerID, listID, fp string) error
	DeleteFingerprint(ctx context.Context, customerID, listID string) error

	MappingStore
}

// SnapshotCache is a read-through cache in front of the fingerprint store.
// Cache failures never fail an export; they only cost a store round trip.
type SnapshotCache interface {
	GetFingerprint(ctx context.Context, customerID, listID string) (fp string, ok bool, err error)
	SetFingerprint(ctx context.Context, customerID, listID, fp string) error
	DeleteFingerprint(ctx context.Context, customerID, listID string) error
}

// StateService implements export-state tracking on top of the durable store
// with a cache in front of the hot fingerprint lookups.
type StateService struct {
	store StateStore
	cache SnapshotCache
}

// NewStateService creates the service. cache may be nil; every lookup then
// goes to the store.
func NewStateService(store StateStore, cache SnapshotCache) *StateService {
	return &StateService{store: store, cache: cache}
}

// DidChangeSinceLastExport compares the entry's fingerprint against the one
// recorded at the last export. No recorded export counts as changed.
func (s *StateService) DidChangeSinceLastExport(ctx context.Context, customerID, listID string, entry *mailchimp.Entry) (bool, error) {
	current, err := Fingerprint(entry)
	if err != nil {
		return false, fmt.Errorf("fingerprint entry: %w", err)
	}

	if s.cache != nil {
		fp, ok, err := s.cache.GetFingerprint(ctx, customerID, listID)
		if err != nil {
			log.Printf("[ExportState] cache lookup failed for customer %s: %v", customerID, err)
		} else if ok {
			return fp != current, nil
		}
	}

	fp, ok, err := s.store.Fingerprint(ctx, customerID, listID)
	if err != nil {
		return false, fmt.Errorf("load fingerprint: %w", err)
	}
	if !ok {
		return true, nil
	}

	if s.cache != nil {
		if err := s.cache.SetFingerprint(ctx, customerID, listID, fp); err != nil {
			log.Printf("[ExportState] cache backfill failed for customer %s: %v", customerID, err)
		}
	}
	return fp != current, nil
}

// RecordExport stores the entry fingerprint after a successful export.
func (s *StateService) RecordExport(ctx context.Context, customerID, listID string, entry *mailchimp.Entry) error {
	fp, err := Fingerprint(entry)
	if err != nil {
		return fmt.Errorf("fingerprint entry: %w", err)
	}
	if err := s.store.SaveFingerprint(ctx, customerID, listID, fp); err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetFingerprint(ctx, customerID, listID, fp); err != nil {
			log.Printf("[ExportState] cache write failed for customer %s: %v", customerID, err)
		}
	}
	return nil
}

// ClearExport drops the recorded fingerprint after a remote delete, so a
// later re-add always exports.
func (s *StateService) ClearExport(ctx context.Context, customerID, listID string) error {
	if err := s.store.DeleteFingerprint(ctx, customerID, listID); err != nil {
		return fmt.Errorf("delete fingerprint: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteFingerprint(ctx, customerID, listID); err != nil {
			log.Printf("[ExportState] cache delete failed for customer %s: %v", customerID, err)
		}
	}
	return nil
}

// RemoteSegmentID resolves a local segment id to its remote interest id. An
// unmapped segment is an error: the segment tree has to be synced before
// member exports can reference it.
func (s *StateService) RemoteSegmentID(ctx context.Context, listID, segmentID string) (string, error) {
	id, ok, err := s.store.RemoteSegmentID(ctx, listID, segmentID)
	if err != nil {
		return "", fmt.Errorf("lookup segment mapping: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("segment %s has no remote mapping for list %s", segmentID, listID)
	}
	return id, nil
}
