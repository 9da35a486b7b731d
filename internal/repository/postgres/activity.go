package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/listsync/internal/domain"
)

// ActivityRepo appends audit activities to the customer timeline.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity repository.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Track appends one activity. Missing ids are generated.
func (r *ActivityRepo) Track(ctx context.Context, a domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	attrs, err := json.Marshal(a.Attributes)
	if err != nil {
		return fmt.Errorf("encode activity attributes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO customer_activities (id, customer_id, type, attributes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, a.ID, a.CustomerID, a.Type, attrs)
	if err != nil {
		return fmt.Errorf("track activity: %w", err)
	}
	return nil
}

// Recent returns the latest activities for a customer, newest first.
func (r *ActivityRepo) Recent(ctx context.Context, customerID string, limit int) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, type, attributes, created_at
		FROM customer_activities
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var (
			a     domain.Activity
			attrs []byte
		)
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Type, &attrs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &a.Attributes); err != nil {
				return nil, fmt.Errorf("decode activity attributes: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
