package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/listsync/internal/domain"
)

// QueueRepo stores pending export queue items.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// Enqueue inserts a queue item. Missing ids are generated.
func (r *QueueRepo) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_queue (id, customer_id, operation, email, processed, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
	`, item.ID, item.CustomerID, string(item.Operation), item.Email)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Pending returns up to limit unprocessed items, oldest first. Customer
// records are not resolved here; the worker loads them per item so a
// deleted customer simply yields a nil record.
func (r *QueueRepo) Pending(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, operation, email, processed, created_at
		FROM export_queue
		WHERE processed = false
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending queue items: %w", err)
	}
	defer rows.Close()

	var out []*domain.QueueItem
	for rows.Next() {
		var item domain.QueueItem
		if err := rows.Scan(&item.ID, &item.CustomerID, &item.Operation, &item.Email,
			&item.SuccessfullyProcessed, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

// MarkProcessed persists the processed flag of a drained item.
func (r *QueueRepo) MarkProcessed(ctx context.Context, item *domain.QueueItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_queue SET processed = $2, processed_at = NOW() WHERE id = $1
	`, item.ID, item.SuccessfullyProcessed)
	if err != nil {
		return fmt.Errorf("mark queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeProcessed removes processed items older than the given interval,
// expressed in days. Returns the number of removed rows.
func (r *QueueRepo) PurgeProcessed(ctx context.Context, olderThanDays int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM export_queue
		WHERE processed = true AND processed_at < NOW() - ($1 || ' days')::interval
	`, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("purge queue: %w", err)
	}
	return res.RowsAffected()
}
