package mailchimp

import (
	"context"

	"github.com/ignite/listsync/internal/domain"
)

// SingleExporter pushes one member entry per API call. It is the only path
// that can handle email changes, since it addresses the member by the old
// address hash.
type SingleExporter interface {
	// ExportOne applies the queue item remotely. entry is nil for delete
	// operations and for items whose customer record no longer exists.
	ExportOne(ctx context.Context, item *domain.QueueItem, entry *Entry) error
}

// BatchExporter pushes many member entries in one API call. Partial-failure
// reporting is entirely the implementation's concern; the handler only sees
// the call-level error.
type BatchExporter interface {
	ExportBatch(ctx context.Context, items []*domain.QueueItem, entries []*Entry) error
}

// SegmentExporter maintains the remote interest-category tree.
type SegmentExporter interface {
	// ExportGroup upserts a remote interest category for the group and
	// returns its remote id plus whether it was created in this call.
	ExportGroup(ctx context.Context, group domain.SegmentGroup, listID string, forceUpdate bool) (remoteID string, created bool, err error)

	// ExportSegment upserts a remote interest under the given category.
	// forceCreate skips the update path when the parent category was just
	// created and cannot hold pre-existing interests.
	ExportSegment(ctx context.Context, segment domain.Segment, listID, remoteGroupID string, forceCreate, forceUpdate bool) (remoteID string, err error)

	// DeleteMissingSegments removes remote interests under the category
	// whose remote ids are not in keep.
	DeleteMissingSegments(ctx context.Context, listID, remoteGroupID string, keep []string) error

	// DeleteMissingGroups removes remote categories whose ids are not in keep.
	DeleteMissingGroups(ctx context.Context, listID string, keep []string) error
}

// ExportState tracks what was last sent per customer and maps local segment
// ids to their remote counterparts.
type ExportState interface {
	// DidChangeSinceLastExport compares the entry against the fingerprint of
	// the last export for (customerID, listID). A customer with no recorded
	// export always counts as changed.
	DidChangeSinceLastExport(ctx context.Context, customerID, listID string, entry *Entry) (bool, error)

	// RecordExport stores the entry fingerprint after a successful export.
	RecordExport(ctx context.Context, customerID, listID string, entry *Entry) error

	// ClearExport drops the fingerprint, used after a remote delete.
	ClearExport(ctx context.Context, customerID, listID string) error

	// RemoteSegmentID resolves a local segment id to its remote interest id.
	RemoteSegmentID(ctx context.Context, listID, segmentID string) (string, error)
}

// SegmentSource supplies the locally defined segment universe.
type SegmentSource interface {
	// ExportableGroups returns segment groups flagged for the shortcut.
	ExportableGroups(ctx context.Context, shortcut string) ([]domain.SegmentGroup, error)

	// SegmentsInGroup returns the segments belonging to a group.
	SegmentsInGroup(ctx context.Context, groupID string) ([]domain.Segment, error)

	// ExportableSegments returns every segment whose group is flagged for
	// the shortcut. This is the full interest universe for entries.
	ExportableSegments(ctx context.Context, shortcut string) ([]domain.Segment, error)
}

// CustomerStore loads and persists customer records.
type CustomerStore interface {
	// ByEmail returns (nil, nil) when no customer matches the address.
	ByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Save(ctx context.Context, c *domain.Customer, opts domain.SaveOptions) error
}

// ActivityTracker records audit events against customers.
type ActivityTracker interface {
	Track(ctx context.Context, a domain.Activity) error
}
