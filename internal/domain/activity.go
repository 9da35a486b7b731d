package domain

import "time"

// Activity is an audit event recorded against a customer. The sync engine
// emits one whenever a provider status write-back actually changes state.
type Activity struct {
	ID         string         `json:"id" db:"id"`
	CustomerID string         `json:"customer_id" db:"customer_id"`
	Type       string         `json:"type" db:"type"`
	Attributes map[string]any `json:"attributes" db:"attributes"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// ActivityStatusChange is the activity type for remote status transitions.
const ActivityStatusChange = "mailchimp_status_change"
