package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ExportStateRepo stores export fingerprints and the remote id mappings of
// the segment tree. It backs both the change detector and the segment
// exporter.
type ExportStateRepo struct{ db *sql.DB }

// NewExportStateRepo creates a Postgres-backed export state repository.
func NewExportStateRepo(db *sql.DB) *ExportStateRepo { return &ExportStateRepo{db: db} }

func (r *ExportStateRepo) Fingerprint(ctx context.Context, customerID, listID string) (string, bool, error) {
	var fp string
	err := r.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM export_state WHERE customer_id = $1 AND list_id = $2`,
		customerID, listID,
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load fingerprint: %w", err)
	}
	return fp, true, nil
}

func (r *ExportStateRepo) SaveFingerprint(ctx context.Context, customerID, listID, fp string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_state (customer_id, list_id, fingerprint, exported_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (customer_id, list_id) DO UPDATE SET fingerprint = $3, exported_at = NOW()
	`, customerID, listID, fp)
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

func (r *ExportStateRepo) DeleteFingerprint(ctx context.Context, customerID, listID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM export_state WHERE customer_id = $1 AND list_id = $2`,
		customerID, listID,
	)
	if err != nil {
		return fmt.Errorf("delete fingerprint: %w", err)
	}
	return nil
}

// Segment mappings share one table; kind distinguishes interest categories
// from interests.

const (
	mappingKindGroup   = "group"
	mappingKindSegment = "segment"
)

func (r *ExportStateRepo) remoteID(ctx context.Context, listID, kind, localID string) (string, bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT remote_id FROM segment_mappings WHERE list_id = $1 AND kind = $2 AND local_id = $3`,
		listID, kind, localID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s mapping: %w", kind, err)
	}
	return id, true, nil
}

func (r *ExportStateRepo) saveMapping(ctx context.Context, listID, kind, localID, remoteID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segment_mappings (list_id, kind, local_id, remote_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (list_id, kind, local_id) DO UPDATE SET remote_id = $4
	`, listID, kind, localID, remoteID)
	if err != nil {
		return fmt.Errorf("save %s mapping: %w", kind, err)
	}
	return nil
}

func (r *ExportStateRepo) RemoteGroupID(ctx context.Context, listID, groupID string) (string, bool, error) {
	return r.remoteID(ctx, listID, mappingKindGroup, groupID)
}

func (r *ExportStateRepo) SaveGroupMapping(ctx context.Context, listID, groupID, remoteID string) error {
	return r.saveMapping(ctx, listID, mappingKindGroup, groupID, remoteID)
}

func (r *ExportStateRepo) RemoteSegmentID(ctx context.Context, listID, segmentID string) (string, bool, error) {
	return r.remoteID(ctx, listID, mappingKindSegment, segmentID)
}

func (r *ExportStateRepo) SaveSegmentMapping(ctx context.Context, listID, segmentID, remoteID string) error {
	return r.saveMapping(ctx, listID, mappingKindSegment, segmentID, remoteID)
}
