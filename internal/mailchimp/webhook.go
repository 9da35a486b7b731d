package mailchimp

import (
	"context"
	"log"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// WebhookEvent is the inbound notification shape the provider posts.
type WebhookEvent struct {
	Type    string      `json:"type"`
	FiredAt string      `json:"fired_at"`
	Data    WebhookData `json:"data"`
}

// WebhookData carries the member-level payload of a webhook event.
type WebhookData struct {
	ListID   string         `json:"list_id"`
	Email    string         `json:"email"`
	NewEmail string         `json:"new_email"`
	Reason   string         `json:"reason"`
	Merges   map[string]any `json:"merges"`
}

// ProcessWebhook feeds a provider notification back into local state.
// Events for other lists are silently dropped; that is routing, not an
// error. Unknown event types are logged and ignored.
func (h *Handler) ProcessWebhook(ctx context.Context, event WebhookEvent) error {
	if event.Data.ListID != h.listID {
		return nil
	}

	switch event.Type {
	case "subscribe":
		return h.applyWebhookStatus(ctx, event.Data.Email, domain.StatusSubscribed)
	case "unsubscribe":
		return h.applyWebhookStatus(ctx, event.Data.Email, domain.StatusUnsubscribed)
	case "cleaned":
		return h.applyWebhookStatus(ctx, event.Data.Email, domain.StatusCleaned)
	case "profile":
		return h.applyWebhookProfile(ctx, event.Data)
	case "upemail":
		// Local state is the source of truth for addresses; an email change
		// flows outward through the queue, never inward.
		log.Printf("[Mailchimp:%s] ignoring upemail webhook for %s", h.shortcut, logger.RedactEmail(event.Data.Email))
		return nil
	default:
		log.Printf("[Mailchimp:%s] ignoring webhook type %q", h.shortcut, event.Type)
		return nil
	}
}

// applyWebhookStatus writes a provider-reported status onto the matching
// customer: local newsletter status via the reverse mapping, remote status
// via UpdateRemoteStatus, one save covering both.
func (h *Handler) applyWebhookStatus(ctx context.Context, email string, status domain.RemoteStatus) error {
	c, err := h.customers.ByEmail(ctx, CleanEmail(email))
	if err != nil {
		return err
	}
	if c == nil {
		log.Printf("[Mailchimp:%s] webhook for unknown customer %s", h.shortcut, logger.RedactEmail(email))
		return nil
	}

	sub := c.Provider(h.shortcut)
	if sub == nil {
		log.Printf("[Mailchimp:%s] webhook customer %s has no subscription state for this shortcut", h.shortcut, c.ID)
		return nil
	}

	localChanged := false
	if local, ok := h.reverseStatusMapping[status]; ok && sub.LocalStatus != local {
		sub.LocalStatus = local
		localChanged = true
	}

	remoteChanged := sub.RemoteStatus != status
	if err := h.UpdateRemoteStatus(ctx, c, status, remoteChanged); err != nil {
		return err
	}

	// UpdateRemoteStatus only saves when the remote status moved; a pure
	// local-status change still needs persisting.
	if localChanged && !remoteChanged {
		return h.customers.Save(ctx, c, domain.SyncSaveOptions())
	}
	return nil
}

// applyWebhookProfile reverse-maps updated merge fields onto the customer
// and saves only if a field actually changed.
func (h *Handler) applyWebhookProfile(ctx context.Context, data WebhookData) error {
	c, err := h.customers.ByEmail(ctx, CleanEmail(data.Email))
	if err != nil {
		return err
	}
	if c == nil {
		log.Printf("[Mailchimp:%s] profile webhook for unknown customer %s", h.shortcut, logger.RedactEmail(data.Email))
		return nil
	}

	changed := false
	for remoteField, value := range data.Merges {
		m, ok := h.ReverseMapMergeField(remoteField, value)
		if !ok {
			continue
		}
		local, _ := c.Field(m.Field)
		if !h.DidMergeFieldDataChange(m.Field, local, value) {
			continue
		}
		if c.SetField(m.Field, m.Value) {
			changed = true
		}
	}

	if !changed {
		return nil
	}
	log.Printf("[Mailchimp:%s][customer %s] profile webhook updated merge fields", h.shortcut, c.ID)
	return h.customers.Save(ctx, c, domain.SyncSaveOptions())
}
