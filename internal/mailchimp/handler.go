package mailchimp

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Deps bundles the collaborators a Handler needs. Every field is required
// except Activity, which may be nil when audit tracking is not wired.
type Deps struct {
	Single        SingleExporter
	Batch         BatchExporter
	Segments      SegmentExporter
	State         ExportState
	SegmentSource SegmentSource
	Customers     CustomerStore
	Activity      ActivityTracker
}

// Handler reconciles one configured Mailchimp list with local customers.
// It is safe for concurrent use; all mutable state lives on the queue items
// and customer records passed in.
type Handler struct {
	shortcut             string
	listID               string
	statusMapping        map[string]domain.RemoteStatus
	reverseStatusMapping map[domain.RemoteStatus]string
	mergeFieldMapping    map[string]string
	fieldTransformers    map[string]FieldTransformer
	batchThreshold       int

	single        SingleExporter
	batch         BatchExporter
	segments      SegmentExporter
	state         ExportState
	segmentSource SegmentSource
	customers     CustomerStore
	activity      ActivityTracker
}

// NewHandler builds a handler from a validated provider config. The config's
// transformer names are resolved against the builtin registry here, so a
// misconfigured provider fails at startup rather than mid-queue.
func NewHandler(cfg config.ProviderConfig, deps Deps) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Single == nil || deps.Batch == nil || deps.State == nil ||
		deps.SegmentSource == nil || deps.Customers == nil {
		return nil, fmt.Errorf("provider %s: missing required dependencies", cfg.Shortcut)
	}

	transformers, err := resolveTransformers(cfg.FieldTransformers)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Shortcut, err)
	}

	statusMapping := make(map[string]domain.RemoteStatus, len(cfg.StatusMapping))
	for local, remote := range cfg.StatusMapping {
		statusMapping[local] = domain.RemoteStatus(remote)
	}
	reverse := make(map[domain.RemoteStatus]string, len(cfg.ReverseStatusMapping))
	for remote, local := range cfg.ReverseStatusMapping {
		reverse[domain.RemoteStatus(remote)] = local
	}

	mergeMapping := cfg.MergeFieldMapping
	if len(mergeMapping) == 0 {
		mergeMapping = map[string]string{
			"firstname": "FNAME",
			"lastname":  "LNAME",
		}
	}

	threshold := cfg.BatchThreshold
	if threshold <= 0 {
		threshold = 50
	}

	return &Handler{
		shortcut:             cfg.Shortcut,
		listID:               cfg.ListID,
		statusMapping:        statusMapping,
		reverseStatusMapping: reverse,
		mergeFieldMapping:    mergeMapping,
		fieldTransformers:    transformers,
		batchThreshold:       threshold,
		single:               deps.Single,
		batch:                deps.Batch,
		segments:             deps.Segments,
		state:                deps.State,
		segmentSource:        deps.SegmentSource,
		customers:            deps.Customers,
		activity:             deps.Activity,
	}, nil
}

// Shortcut returns the provider instance identifier.
func (h *Handler) Shortcut() string { return h.shortcut }

// ListID returns the remote list id.
func (h *Handler) ListID() string { return h.listID }

// ProcessQueueItems runs the reconciliation pass over a drained batch of
// queue items: filter to the ones needing export, split off email changes,
// then route through the single or batch transport. Per-item transport
// failures are logged and leave the item unprocessed; only configuration
// errors abort the pass.
func (h *Handler) ProcessQueueItems(ctx context.Context, items []*domain.QueueItem, forceUpdate bool) error {
	needed, err := h.updateNeededItems(ctx, items, forceUpdate)
	if err != nil {
		return err
	}

	emailChanged, regular := splitEmailChangedItems(needed)

	// Email changes cannot ride the batch path: the batch API keys members
	// by the old address hash and rejects address rewrites.
	if len(emailChanged) > 0 {
		log.Printf("[Mailchimp:%s] processing %d items where the email address changed", h.shortcut, len(emailChanged))
		for _, item := range emailChanged {
			h.exportSingle(ctx, item)
		}
	}

	switch n := len(regular); {
	case n == 0:
		log.Printf("[Mailchimp:%s] 0 items to process", h.shortcut)
	case n <= h.batchThreshold:
		log.Printf("[Mailchimp:%s] item count (%d) is at or below batch threshold (%d), sending one request per entry", h.shortcut, n, h.batchThreshold)
		for _, item := range regular {
			h.exportSingle(ctx, item)
		}
	default:
		log.Printf("[Mailchimp:%s] sending %d items as one batch request", h.shortcut, n)
		h.exportBatch(ctx, regular)
	}

	return nil
}

// updateNeededItems filters the batch down to items that require a remote
// call, marking the rest successfully processed. Ordering is preserved.
func (h *Handler) updateNeededItems(ctx context.Context, items []*domain.QueueItem, forceUpdate bool) ([]*domain.QueueItem, error) {
	var needed []*domain.QueueItem

	for _, item := range items {
		// Creates, deletes, and items whose customer record vanished always
		// go out; there is nothing local to compare against.
		if item.Customer == nil || item.Operation != domain.OperationUpdate {
			needed = append(needed, item)
			continue
		}

		c := item.Customer
		sub := c.Provider(h.shortcut)
		if sub == nil {
			return nil, fmt.Errorf("customer %s: %w (shortcut %s)", c.ID, ErrProviderNotConfigured, h.shortcut)
		}

		if !sub.Exportable {
			// Only push if a remote status proves the customer exists on the
			// list; otherwise they were never represented remotely and the
			// removal is a no-op. Cleaned members are skipped outright, the
			// address is invalid anyway.
			if sub.RemoteStatus != "" && sub.RemoteStatus != domain.StatusCleaned {
				needed = append(needed, item)
			} else {
				log.Printf("[Mailchimp:%s][customer %s] export not needed, customer is not in the export set", h.shortcut, c.ID)
				item.MarkProcessed(true)
			}
			continue
		}

		entry, err := h.BuildEntry(ctx, c)
		if err != nil {
			return nil, err
		}

		changed := forceUpdate
		if !changed {
			changed, err = h.state.DidChangeSinceLastExport(ctx, c.ID, h.listID, entry)
			if err != nil {
				// Treat an unreadable snapshot as changed: a redundant
				// export is cheaper than a missed one.
				log.Printf("[Mailchimp:%s][customer %s] snapshot lookup failed, exporting anyway: %v", h.shortcut, c.ID, err)
				changed = true
			}
		}

		if !changed {
			log.Printf("[Mailchimp:%s][customer %s] export not needed, the export data did not change", h.shortcut, c.ID)
			item.MarkProcessed(true)
			continue
		}

		if sub.RemoteStatus == "" && entry.targetStatus() == domain.StatusUnsubscribed {
			// Never exported and already unsubscribed: the export is
			// redundant for the member but still sent, so the list stays an
			// exact mirror of local state.
			log.Printf("[Mailchimp:%s][customer %s] customer is unsubscribed and was never exported", h.shortcut, c.ID)
		}

		needed = append(needed, item)
	}

	return needed, nil
}

// splitEmailChangedItems partitions items into those whose customer email
// differs from the address captured at enqueue time and the rest. Relative
// order within each partition is preserved.
func splitEmailChangedItems(items []*domain.QueueItem) (emailChanged, regular []*domain.QueueItem) {
	for _, item := range items {
		if item.Operation == domain.OperationUpdate && item.Customer != nil &&
			CleanEmail(item.Customer.Email) != CleanEmail(item.Email) {
			emailChanged = append(emailChanged, item)
			continue
		}
		regular = append(regular, item)
	}
	return emailChanged, regular
}

// exportSingle pushes one item through the single transport. Failures are
// logged with customer context and do not abort the surrounding loop.
func (h *Handler) exportSingle(ctx context.Context, item *domain.QueueItem) {
	entry, err := h.entryFor(ctx, item)
	if err != nil {
		log.Printf("[Mailchimp:%s][customer %s] building entry failed: %v", h.shortcut, item.CustomerID, err)
		item.MarkProcessed(false)
		return
	}

	if err := h.single.ExportOne(ctx, item, entry); err != nil {
		log.Printf("[Mailchimp:%s][customer %s] single export of %s failed: %v",
			h.shortcut, item.CustomerID, logger.RedactEmail(item.Email), err)
		item.MarkProcessed(false)
		return
	}

	item.MarkProcessed(true)
	h.recordOutcome(ctx, item, entry)
}

// exportBatch pushes all items in one batch call. The batch collaborator
// owns partial-failure reporting; a call-level error leaves every item
// unprocessed for the next drain.
func (h *Handler) exportBatch(ctx context.Context, items []*domain.QueueItem) {
	sendItems := make([]*domain.QueueItem, 0, len(items))
	sendEntries := make([]*Entry, 0, len(items))
	for _, item := range items {
		entry, err := h.entryFor(ctx, item)
		if err != nil {
			log.Printf("[Mailchimp:%s][customer %s] building entry failed: %v", h.shortcut, item.CustomerID, err)
			item.MarkProcessed(false)
			continue
		}
		sendItems = append(sendItems, item)
		sendEntries = append(sendEntries, entry)
	}

	if err := h.batch.ExportBatch(ctx, sendItems, sendEntries); err != nil {
		log.Printf("[Mailchimp:%s] batch export of %d items failed: %v", h.shortcut, len(sendItems), err)
		return
	}

	for i, item := range sendItems {
		item.MarkProcessed(true)
		h.recordOutcome(ctx, item, sendEntries[i])
	}
}

// entryFor builds the outbound entry for an item; nil for deletes and for
// items without a resolved customer.
func (h *Handler) entryFor(ctx context.Context, item *domain.QueueItem) (*Entry, error) {
	if item.Customer == nil || item.Operation == domain.OperationDelete {
		return nil, nil
	}
	return h.BuildEntry(ctx, item.Customer)
}

// recordOutcome updates the export-state fingerprint after a successful
// remote call.
func (h *Handler) recordOutcome(ctx context.Context, item *domain.QueueItem, entry *Entry) {
	var err error
	if entry == nil {
		err = h.state.ClearExport(ctx, item.CustomerID, h.listID)
	} else {
		err = h.state.RecordExport(ctx, item.CustomerID, h.listID, entry)
	}
	if err != nil {
		log.Printf("[Mailchimp:%s][customer %s] recording export state failed: %v", h.shortcut, item.CustomerID, err)
	}
}

// SubscribeCustomer sets the local newsletter status to the reverse mapping
// of "subscribed", pushes an immediate single-exporter update, and persists
// the customer with sync side effects suppressed.
func (h *Handler) SubscribeCustomer(ctx context.Context, c *domain.Customer) error {
	return h.applyLocalStatus(ctx, c, domain.StatusSubscribed)
}

// UnsubscribeCustomer is the counterpart of SubscribeCustomer for
// "unsubscribed".
func (h *Handler) UnsubscribeCustomer(ctx context.Context, c *domain.Customer) error {
	return h.applyLocalStatus(ctx, c, domain.StatusUnsubscribed)
}

func (h *Handler) applyLocalStatus(ctx context.Context, c *domain.Customer, status domain.RemoteStatus) error {
	local, ok := h.reverseStatusMapping[status]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmappedStatus, status)
	}

	sub := c.Provider(h.shortcut)
	if sub == nil {
		return fmt.Errorf("customer %s: %w (shortcut %s)", c.ID, ErrProviderNotConfigured, h.shortcut)
	}
	sub.LocalStatus = local

	item := &domain.QueueItem{
		ID:         uuid.New().String(),
		CustomerID: c.ID,
		Customer:   c,
		Email:      c.Email,
		Operation:  domain.OperationUpdate,
	}

	entry, err := h.BuildEntry(ctx, c)
	if err != nil {
		return err
	}
	if err := h.single.ExportOne(ctx, item, entry); err != nil {
		return fmt.Errorf("export %s update: %w", status, err)
	}
	h.recordOutcome(ctx, item, entry)

	// Queue and duplicate-index side effects stay off: this save is itself
	// the result of a sync operation.
	opts := domain.SaveOptions{
		DisableQueue:           true,
		DisableSegmentBuilders: true,
		DisableDuplicatesIndex: true,
	}
	if err := h.customers.Save(ctx, c, opts); err != nil {
		return fmt.Errorf("save customer after %s: %w", status, err)
	}
	return nil
}

// ReverseMapStatus translates a provider status to the local newsletter
// status value, if a mapping is configured.
func (h *Handler) ReverseMapStatus(status domain.RemoteStatus) (string, bool) {
	local, ok := h.reverseStatusMapping[status]
	return local, ok
}

// UpdateRemoteStatus applies a provider-reported status to the local record.
// Writing the same status twice is a no-op: no save, no audit event. The
// save suppresses re-enqueueing so the write-back cannot loop through the
// queue forever.
func (h *Handler) UpdateRemoteStatus(ctx context.Context, c *domain.Customer, status domain.RemoteStatus, saveCustomer bool) error {
	sub := c.Provider(h.shortcut)
	if sub == nil {
		return fmt.Errorf("customer %s: %w (shortcut %s)", c.ID, ErrProviderNotConfigured, h.shortcut)
	}

	if sub.RemoteStatus == status {
		return nil
	}
	sub.RemoteStatus = status

	if h.activity != nil {
		activity := domain.Activity{
			ID:         uuid.New().String(),
			CustomerID: c.ID,
			Type:       domain.ActivityStatusChange,
			Attributes: map[string]any{
				"status":   string(status),
				"listId":   h.listID,
				"shortcut": h.shortcut,
			},
		}
		if err := h.activity.Track(ctx, activity); err != nil {
			log.Printf("[Mailchimp:%s][customer %s] tracking status change failed: %v", h.shortcut, c.ID, err)
		}
	}

	if saveCustomer {
		if err := h.customers.Save(ctx, c, domain.SyncSaveOptions()); err != nil {
			return fmt.Errorf("save customer after status change: %w", err)
		}
	}
	return nil
}
