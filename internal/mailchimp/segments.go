package mailchimp

import (
	"context"
	"fmt"
	"log"
)

// UpdateSegmentGroups reconciles the remote interest-category tree with the
// locally exportable segment groups: upsert every group, upsert its
// segments (forcing creation under a freshly created group, which cannot
// hold pre-existing interests to update), prune remote segments with no
// local counterpart, and finally prune orphaned remote groups. Segment
// pruning runs before the group sweep so a segment delete never races the
// deletion of its own group.
func (h *Handler) UpdateSegmentGroups(ctx context.Context, forceUpdate bool) error {
	if h.segments == nil {
		return fmt.Errorf("provider %s: no segment exporter configured", h.shortcut)
	}

	groups, err := h.segmentSource.ExportableGroups(ctx, h.shortcut)
	if err != nil {
		return fmt.Errorf("load exportable segment groups: %w", err)
	}

	keepGroups := make([]string, 0, len(groups))
	for _, group := range groups {
		remoteGroupID, created, err := h.segments.ExportGroup(ctx, group, h.listID, forceUpdate)
		if err != nil {
			return fmt.Errorf("export segment group %s: %w", group.ID, err)
		}
		keepGroups = append(keepGroups, remoteGroupID)

		segments, err := h.segmentSource.SegmentsInGroup(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("load segments of group %s: %w", group.ID, err)
		}

		keepSegments := make([]string, 0, len(segments))
		for _, segment := range segments {
			remoteSegmentID, err := h.segments.ExportSegment(ctx, segment, h.listID, remoteGroupID, created, forceUpdate)
			if err != nil {
				return fmt.Errorf("export segment %s: %w", segment.ID, err)
			}
			keepSegments = append(keepSegments, remoteSegmentID)
		}

		if err := h.segments.DeleteMissingSegments(ctx, h.listID, remoteGroupID, keepSegments); err != nil {
			return fmt.Errorf("prune segments of group %s: %w", group.ID, err)
		}
	}

	if err := h.segments.DeleteMissingGroups(ctx, h.listID, keepGroups); err != nil {
		return fmt.Errorf("prune segment groups: %w", err)
	}

	log.Printf("[Mailchimp:%s] segment group sync complete, %d groups reconciled", h.shortcut, len(groups))
	return nil
}
