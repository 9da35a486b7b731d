package domain

// SegmentGroup is a local grouping of customer segments. Only groups flagged
// exportable for a provider shortcut participate in that provider's sync.
type SegmentGroup struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// ExportTo holds the provider shortcuts this group is exported to.
	ExportTo []string `json:"export_to"`
}

// ExportableFor reports whether the group is flagged for the given shortcut.
func (g SegmentGroup) ExportableFor(shortcut string) bool {
	for _, s := range g.ExportTo {
		if s == shortcut {
			return true
		}
	}
	return false
}

// Segment is a local customer segment; it maps to a provider "interest".
type Segment struct {
	ID      string `json:"id" db:"id"`
	GroupID string `json:"group_id" db:"group_id"`
	Name    string `json:"name" db:"name"`
}
