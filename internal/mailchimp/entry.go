package mailchimp

import (
	"context"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
)

// Entry is the outbound member payload. Status and StatusIfNew are mutually
// exclusive: StatusIfNew only takes effect when the provider has no record
// for the member yet, which avoids clobbering an already-correct remote
// status while still covering first creation.
type Entry struct {
	EmailAddress string              `json:"email_address"`
	MergeFields  map[string]any      `json:"merge_fields"`
	Interests    map[string]bool     `json:"interests,omitempty"`
	Status       domain.RemoteStatus `json:"status,omitempty"`
	StatusIfNew  domain.RemoteStatus `json:"status_if_new,omitempty"`
}

// MergeField is a resolved (remote field name, value) pair.
type MergeField struct {
	Field string
	Value any
}

// BuildEntry composes the provider payload for a customer: merge fields,
// normalized email, the full interest vector, and the reconciled status.
func (h *Handler) BuildEntry(ctx context.Context, c *domain.Customer) (*Entry, error) {
	sub := c.Provider(h.shortcut)
	if sub == nil {
		return nil, fmt.Errorf("customer %s: %w (shortcut %s)", c.ID, ErrProviderNotConfigured, h.shortcut)
	}

	mergeFields := make(map[string]any, len(h.mergeFieldMapping))
	for field := range h.mergeFieldMapping {
		m, ok := h.MapMergeField(field, c)
		if !ok {
			continue
		}
		mergeFields[m.Field] = m.Value
	}

	entry := &Entry{
		EmailAddress: CleanEmail(c.Email),
		MergeFields:  mergeFields,
	}

	interests, err := h.buildCustomerSegmentData(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(interests) > 0 {
		entry.Interests = interests
	}

	h.addStatusToEntry(c, sub, entry)

	return entry, nil
}

// MapMergeField resolves a local field to its remote merge field, applying
// the registered transformer and coercing nil to the empty string. Returns
// false for fields without a mapping.
func (h *Handler) MapMergeField(field string, c *domain.Customer) (MergeField, bool) {
	to, ok := h.mergeFieldMapping[field]
	if !ok {
		return MergeField{}, false
	}

	value, _ := c.Field(field)
	if tr, ok := h.fieldTransformers[field]; ok {
		value = tr.ToRemote(value)
	}
	if value == nil {
		value = ""
	}
	return MergeField{Field: to, Value: value}, true
}

// ReverseMapMergeField resolves a remote merge field back to its local field
// name and value, applying the reverse transformer. Returns false when no
// local field maps to the remote one.
func (h *Handler) ReverseMapMergeField(remoteField string, value any) (MergeField, bool) {
	for from, to := range h.mergeFieldMapping {
		if to != remoteField {
			continue
		}
		if tr, ok := h.fieldTransformers[from]; ok {
			value = tr.ToLocal(value)
		}
		return MergeField{Field: from, Value: value}, true
	}
	return MergeField{}, false
}

// DidMergeFieldDataChange compares a local field value against imported
// provider data, honoring the field's transformer when one is registered.
func (h *Handler) DidMergeFieldDataChange(field string, localValue, remoteValue any) bool {
	if tr, ok := h.fieldTransformers[field]; ok {
		return tr.Changed(localValue, remoteValue)
	}
	return localValue != remoteValue
}

// addStatusToEntry computes the status decision for the entry.
//
// The precedence is: mapped local status (unmapped falls back to
// unsubscribed), overridden to cleaned if the remote record is cleaned
// (terminal, never left), and dropped entirely if the customer is not
// flagged exportable. A target equal to the current remote status goes out
// as status_if_new so an existing remote record is never rewritten.
func (h *Handler) addStatusToEntry(c *domain.Customer, sub *domain.ProviderSubscription, entry *Entry) {
	status, ok := h.statusMapping[sub.LocalStatus]
	if !ok {
		status = domain.StatusUnsubscribed
	}

	if sub.RemoteStatus == domain.StatusCleaned {
		status = domain.StatusCleaned
	}

	if !sub.Exportable {
		// No status decision at all: the entry must not touch the remote
		// status of a customer who left the export set.
		return
	}

	if status != sub.RemoteStatus {
		entry.Status = status
	} else {
		entry.StatusIfNew = status
	}
}

// targetStatus returns the status the entry would carry, regardless of
// whether it ended up in Status or StatusIfNew.
func (e *Entry) targetStatus() domain.RemoteStatus {
	if e.Status != "" {
		return e.Status
	}
	return e.StatusIfNew
}

// buildCustomerSegmentData computes the full interest vector: every
// exportable segment appears, true iff the customer holds it. The provider
// merges partial interest maps with the existing member record, so omitting
// a segment would leave a stale remote membership in place.
func (h *Handler) buildCustomerSegmentData(ctx context.Context, c *domain.Customer) (map[string]bool, error) {
	segments, err := h.segmentSource.ExportableSegments(ctx, h.shortcut)
	if err != nil {
		return nil, fmt.Errorf("load exportable segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	data := make(map[string]bool, len(segments))
	for _, seg := range segments {
		remoteID, err := h.state.RemoteSegmentID(ctx, h.listID, seg.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve remote id for segment %s: %w", seg.ID, err)
		}
		data[remoteID] = c.HasSegment(seg.ID)
	}
	return data, nil
}
