package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/listsync/internal/domain"
)

// SegmentRepo supplies the locally defined segment universe.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

// ExportableGroups returns the segment groups flagged for the shortcut.
func (r *SegmentRepo) ExportableGroups(ctx context.Context, shortcut string) ([]domain.SegmentGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, export_to
		FROM segment_groups
		WHERE $1 = ANY(export_to)
		ORDER BY id
	`, shortcut)
	if err != nil {
		return nil, fmt.Errorf("load exportable groups: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentGroup
	for rows.Next() {
		var g domain.SegmentGroup
		if err := rows.Scan(&g.ID, &g.Name, pq.Array(&g.ExportTo)); err != nil {
			return nil, fmt.Errorf("scan segment group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SegmentsInGroup returns the segments belonging to a group.
func (r *SegmentRepo) SegmentsInGroup(ctx context.Context, groupID string) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, name FROM segments WHERE group_id = $1 ORDER BY id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("load segments of group: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// ExportableSegments returns every segment whose group is flagged for the
// shortcut. This is the interest universe entries are built against.
func (r *SegmentRepo) ExportableSegments(ctx context.Context, shortcut string) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.group_id, s.name
		FROM segments s
		JOIN segment_groups g ON g.id = s.group_id
		WHERE $1 = ANY(g.export_to)
		ORDER BY s.id
	`, shortcut)
	if err != nil {
		return nil, fmt.Errorf("load exportable segments: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

func scanSegments(rows *sql.Rows) ([]domain.Segment, error) {
	var out []domain.Segment
	for rows.Next() {
		var s domain.Segment
		if err := rows.Scan(&s.ID, &s.GroupID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
