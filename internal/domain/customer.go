package domain

import (
	"strings"
	"time"
)

// ProviderSubscription holds the per-provider newsletter state of a customer.
// One exists per configured provider shortcut, so a single customer record
// can participate in several lists with independent statuses.
type ProviderSubscription struct {
	// Exportable mirrors the "export this customer to this provider" flag
	// on the customer record. A customer without the flag is not represented
	// remotely unless a remote status proves otherwise.
	Exportable bool `json:"exportable" db:"exportable"`

	// LocalStatus is the locally maintained newsletter status. Its value set
	// is site-specific and is translated to a RemoteStatus via the provider's
	// status mapping.
	LocalStatus string `json:"local_status" db:"local_status"`

	// RemoteStatus is the last provider status observed for this customer,
	// written back by webhook processing. Empty means the customer was never
	// exported (or the provider never reported on them).
	RemoteStatus RemoteStatus `json:"remote_status" db:"remote_status"`
}

// Customer is a local customer record reduced to the capability surface the
// sync engine needs: identity, email, merge-field sources, segment
// memberships, and per-shortcut subscription state.
type Customer struct {
	ID        string         `json:"id" db:"id"`
	Email     string         `json:"email" db:"email"`
	FirstName string         `json:"first_name" db:"first_name"`
	LastName  string         `json:"last_name" db:"last_name"`
	Fields    map[string]any `json:"fields" db:"fields"`

	Segments []Segment `json:"segments"`

	// Subscriptions is keyed by provider shortcut.
	Subscriptions map[string]*ProviderSubscription `json:"subscriptions"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Provider returns the subscription state for the given shortcut, or nil if
// the customer record is not configured for that provider.
func (c *Customer) Provider(shortcut string) *ProviderSubscription {
	if c == nil || c.Subscriptions == nil {
		return nil
	}
	return c.Subscriptions[shortcut]
}

// NeedsExport reports whether the customer is currently flagged exportable
// for the given provider shortcut.
func (c *Customer) NeedsExport(shortcut string) bool {
	sub := c.Provider(shortcut)
	return sub != nil && sub.Exportable
}

// Field reads a merge-field source value by name. First/last name and email
// are first-class; everything else comes from the free-form Fields map.
func (c *Customer) Field(name string) (any, bool) {
	switch strings.ToLower(name) {
	case "firstname", "first_name":
		return c.FirstName, true
	case "lastname", "last_name":
		return c.LastName, true
	case "email":
		return c.Email, true
	}
	v, ok := c.Fields[name]
	return v, ok
}

// SetField writes a merge-field source value by name, the inverse of Field.
// Returns true if the value differed from what was stored.
func (c *Customer) SetField(name string, value any) bool {
	switch strings.ToLower(name) {
	case "firstname", "first_name":
		s, _ := value.(string)
		if c.FirstName == s {
			return false
		}
		c.FirstName = s
		return true
	case "lastname", "last_name":
		s, _ := value.(string)
		if c.LastName == s {
			return false
		}
		c.LastName = s
		return true
	}
	if c.Fields == nil {
		c.Fields = make(map[string]any)
	}
	if old, ok := c.Fields[name]; ok && old == value {
		return false
	}
	c.Fields[name] = value
	return true
}

// HasSegment reports whether the customer currently holds the segment.
func (c *Customer) HasSegment(segmentID string) bool {
	for _, s := range c.Segments {
		if s.ID == segmentID {
			return true
		}
	}
	return false
}
