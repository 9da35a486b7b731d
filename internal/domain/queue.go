package domain

import "time"

// Operation enumerates the change kinds a queue item can carry.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// QueueItem is one pending customer change handed to the sync engine. Items
// are created by the enqueueing side when a customer is saved or deleted;
// the engine only ever flips SuccessfullyProcessed.
type QueueItem struct {
	ID         string    `json:"id" db:"id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	Operation  Operation `json:"operation" db:"operation"`

	// Email is the address captured at enqueue time. If the customer's
	// current email differs at processing time, the address changed in
	// between and the item must take the single-export path.
	Email string `json:"email" db:"email"`

	// Customer is the resolved record, nil if it no longer exists (which is
	// expected for delete operations).
	Customer *Customer `json:"-" db:"-"`

	SuccessfullyProcessed bool      `json:"successfully_processed" db:"processed"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// MarkProcessed flags the item as done. Used both after a successful export
// and when change detection decides no export is needed.
func (i *QueueItem) MarkProcessed(ok bool) { i.SuccessfullyProcessed = ok }
