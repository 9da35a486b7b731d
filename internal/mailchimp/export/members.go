package export

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
)

var (
	_ mailchimp.SingleExporter = (*Client)(nil)
	_ mailchimp.BatchExporter  = (*Client)(nil)
)

// memberPath addresses a member by the hash of the address the item was
// enqueued under. For email changes that is the OLD address, so the upsert
// rewrites the existing remote record instead of creating a duplicate.
func (c *Client) memberPath(email string) string {
	return fmt.Sprintf("/lists/%s/members/%s", c.listID, SubscriberHash(email))
}

// ExportOne applies a single queue item remotely. A nil entry means the
// member should no longer exist on the list.
func (c *Client) ExportOne(ctx context.Context, item *domain.QueueItem, entry *mailchimp.Entry) error {
	if entry == nil {
		return c.deleteMember(ctx, item.Email)
	}

	if _, err := c.doRequest(ctx, http.MethodPut, c.memberPath(item.Email), entry); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (c *Client) deleteMember(ctx context.Context, email string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, c.memberPath(email), nil)
	if err != nil {
		if IsNotFound(err) {
			// Already gone remotely, nothing to do.
			return nil
		}
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

type batchOperation struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Body        string `json:"body,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
}

type batchRequest struct {
	Operations []batchOperation `json:"operations"`
}

type batchResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TotalOps       int    `json:"total_operations"`
	FinishedOps    int    `json:"finished_operations"`
	ErroredOps     int    `json:"errored_operations"`
	ResponseBodyURL string `json:"response_body_url"`
}

// ExportBatch submits one batch job for the given items. entries[i] belongs
// to items[i]; a nil entry turns into a member delete operation. The batch
// endpoint processes operations asynchronously, so only submission errors
// surface here.
func (c *Client) ExportBatch(ctx context.Context, items []*domain.QueueItem, entries []*mailchimp.Entry) error {
	if len(items) != len(entries) {
		return fmt.Errorf("batch size mismatch: %d items, %d entries", len(items), len(entries))
	}
	if len(items) == 0 {
		return nil
	}

	ops := make([]batchOperation, 0, len(items))
	for i, item := range items {
		op := batchOperation{
			Path:        c.memberPath(item.Email),
			OperationID: item.ID,
		}
		if entries[i] == nil {
			op.Method = http.MethodDelete
		} else {
			body, err := encodeBody(entries[i])
			if err != nil {
				return fmt.Errorf("encode entry for item %s: %w", item.ID, err)
			}
			op.Method = http.MethodPut
			op.Body = body
		}
		ops = append(ops, op)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/batches", batchRequest{Operations: ops})
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}

	var resp batchResponse
	if err := decodeBody(respBody, &resp); err != nil {
		return fmt.Errorf("parse batch response: %w", err)
	}
	log.Printf("[MailchimpExport] submitted batch %s with %d operations (status %s)",
		resp.ID, len(ops), resp.Status)
	return nil
}
