// Package postgres implements the persistence layer against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/listsync/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// CustomerRepo implements customer loading and saving against PostgreSQL.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer repository.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `id, email, first_name, last_name, fields, created_at, updated_at`

// ByID loads a customer with subscriptions and segment memberships.
func (r *CustomerRepo) ByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.loadOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

// ByEmail loads a customer by normalized email address. No match is not an
// error: webhook processing treats an unknown address as ignorable, so this
// returns (nil, nil).
func (r *CustomerRepo) ByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	c, err := r.loadOne(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (r *CustomerRepo) loadOne(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	var (
		c      domain.Customer
		fields []byte
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &fields, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.Fields); err != nil {
			return nil, fmt.Errorf("decode customer fields: %w", err)
		}
	}

	if err := r.loadSubscriptions(ctx, &c); err != nil {
		return nil, err
	}
	if err := r.loadSegments(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) loadSubscriptions(ctx context.Context, c *domain.Customer) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT shortcut, exportable, local_status, remote_status
		FROM customer_subscriptions
		WHERE customer_id = $1
	`, c.ID)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	defer rows.Close()

	c.Subscriptions = make(map[string]*domain.ProviderSubscription)
	for rows.Next() {
		var (
			shortcut string
			sub      domain.ProviderSubscription
		)
		if err := rows.Scan(&shortcut, &sub.Exportable, &sub.LocalStatus, &sub.RemoteStatus); err != nil {
			return fmt.Errorf("scan subscription: %w", err)
		}
		c.Subscriptions[shortcut] = &sub
	}
	return rows.Err()
}

func (r *CustomerRepo) loadSegments(ctx context.Context, c *domain.Customer) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.group_id, s.name
		FROM customer_segments cs
		JOIN segments s ON s.id = cs.segment_id
		WHERE cs.customer_id = $1
		ORDER BY s.id
	`, c.ID)
	if err != nil {
		return fmt.Errorf("load customer segments: %w", err)
	}
	defer rows.Close()

	c.Segments = nil
	for rows.Next() {
		var seg domain.Segment
		if err := rows.Scan(&seg.ID, &seg.GroupID, &seg.Name); err != nil {
			return fmt.Errorf("scan customer segment: %w", err)
		}
		c.Segments = append(c.Segments, seg)
	}
	return rows.Err()
}

// Save persists the customer in one transaction. SaveOptions suppress the
// side effects a save normally triggers: queue enqueueing, segment
// membership rewriting, email validation, and the duplicates index refresh.
func (r *CustomerRepo) Save(ctx context.Context, c *domain.Customer, opts domain.SaveOptions) error {
	if !opts.DisableValidator {
		if strings.TrimSpace(c.Email) == "" || !strings.Contains(c.Email, "@") {
			return fmt.Errorf("customer %s: invalid email %q", c.ID, c.Email)
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	fields, err := json.Marshal(c.Fields)
	if err != nil {
		return fmt.Errorf("encode customer fields: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, email, first_name, last_name, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = $2, first_name = $3, last_name = $4, fields = $5, updated_at = NOW()
	`, c.ID, c.Email, c.FirstName, c.LastName, fields)
	if err != nil {
		return fmt.Errorf("save customer: %w", err)
	}

	for shortcut, sub := range c.Subscriptions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO customer_subscriptions (customer_id, shortcut, exportable, local_status, remote_status)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (customer_id, shortcut) DO UPDATE SET
				exportable = $3, local_status = $4, remote_status = $5
		`, c.ID, shortcut, sub.Exportable, sub.LocalStatus, string(sub.RemoteStatus))
		if err != nil {
			return fmt.Errorf("save subscription %s: %w", shortcut, err)
		}
	}

	if !opts.DisableSegmentBuilders {
		if err := r.rewriteSegments(ctx, tx, c); err != nil {
			return err
		}
	}

	if !opts.DisableDuplicatesIndex {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO customer_email_index (email_normalized, customer_id)
			VALUES (LOWER(TRIM($1)), $2)
			ON CONFLICT (email_normalized) DO UPDATE SET customer_id = $2
		`, c.Email, c.ID)
		if err != nil {
			return fmt.Errorf("refresh email index: %w", err)
		}
	}

	if !opts.DisableQueue {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO export_queue (id, customer_id, operation, email, processed, created_at)
			VALUES ($1, $2, $3, $4, false, NOW())
		`, uuid.New().String(), c.ID, string(domain.OperationUpdate), c.Email)
		if err != nil {
			return fmt.Errorf("enqueue export: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *CustomerRepo) rewriteSegments(ctx context.Context, tx *sql.Tx, c *domain.Customer) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM customer_segments WHERE customer_id = $1`, c.ID,
	); err != nil {
		return fmt.Errorf("clear customer segments: %w", err)
	}
	for _, seg := range c.Segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customer_segments (customer_id, segment_id) VALUES ($1, $2)
		`, c.ID, seg.ID); err != nil {
			return fmt.Errorf("save customer segment %s: %w", seg.ID, err)
		}
	}
	return nil
}
