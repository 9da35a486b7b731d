// Package worker runs the periodic queue drain that pushes local customer
// changes to the configured provider lists.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/distlock"
	"github.com/ignite/listsync/internal/repository/postgres"
)

// CustomerLoader resolves queue items to customer records.
type CustomerLoader interface {
	ByID(ctx context.Context, id string) (*domain.Customer, error)
}

// QueueStore drains and acknowledges queue items.
type QueueStore interface {
	Pending(ctx context.Context, limit int) ([]*domain.QueueItem, error)
	MarkProcessed(ctx context.Context, item *domain.QueueItem) error
}

// Locker guards one provider's drain. Satisfied by distlock.RedisLock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SyncWorker drains the export queue on an interval and hands the items to
// each configured provider handler. A per-shortcut distributed lock keeps
// concurrent instances from processing the same provider at once, which is
// what keeps per-customer operations ordered.
type SyncWorker struct {
	handlers  []*mailchimp.Handler
	customers CustomerLoader
	queue     QueueStore
	interval  time.Duration
	batchSize int

	newLock func(shortcut string) Locker
}

// NewSyncWorker wires the worker from config. The redis client backs the
// per-shortcut locks.
func NewSyncWorker(cfg config.WorkerConfig, handlers []*mailchimp.Handler, customers CustomerLoader, queue QueueStore, rdb *redis.Client) *SyncWorker {
	lockTTL := cfg.LockTTL()
	return &SyncWorker{
		handlers:  handlers,
		customers: customers,
		queue:     queue,
		interval:  cfg.Interval(),
		batchSize: cfg.BatchLimit,
		newLock: func(shortcut string) Locker {
			return distlock.New(rdb, "sync:"+shortcut, lockTTL)
		},
	}
}

// Run drains on the configured interval until the context is canceled. One
// immediate drain runs at startup so a restart does not wait a full tick.
func (w *SyncWorker) Run(ctx context.Context) {
	log.Printf("[SyncWorker] starting, interval %s, batch limit %d", w.interval, w.batchSize)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SyncWorker] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one drain pass across all providers.
func (w *SyncWorker) RunOnce(ctx context.Context) {
	items, err := w.queue.Pending(ctx, w.batchSize)
	if err != nil {
		log.Printf("[SyncWorker] loading pending queue items failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	w.resolveCustomers(ctx, items)

	for _, h := range w.handlers {
		w.drainProvider(ctx, h, items)
	}

	w.persistOutcomes(ctx, items)
}

// resolveCustomers attaches the current customer record to each item. A
// record that no longer exists stays nil, which the handler treats as a
// remote delete.
func (w *SyncWorker) resolveCustomers(ctx context.Context, items []*domain.QueueItem) {
	loaded := make(map[string]*domain.Customer, len(items))
	for _, item := range items {
		if c, ok := loaded[item.CustomerID]; ok {
			item.Customer = c
			continue
		}
		c, err := w.customers.ByID(ctx, item.CustomerID)
		if err != nil && !errors.Is(err, postgres.ErrNotFound) {
			log.Printf("[SyncWorker] loading customer %s failed: %v", item.CustomerID, err)
			continue
		}
		loaded[item.CustomerID] = c
		item.Customer = c
	}
}

func (w *SyncWorker) drainProvider(ctx context.Context, h *mailchimp.Handler, items []*domain.QueueItem) {
	lock := w.newLock(h.Shortcut())
	ok, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[SyncWorker] acquiring lock for %s failed: %v", h.Shortcut(), err)
		return
	}
	if !ok {
		log.Printf("[SyncWorker] provider %s is locked by another instance, skipping", h.Shortcut())
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Printf("[SyncWorker] releasing lock for %s failed: %v", h.Shortcut(), err)
		}
	}()

	if err := h.ProcessQueueItems(ctx, items, false); err != nil {
		log.Printf("[SyncWorker] provider %s aborted the drain: %v", h.Shortcut(), err)
	}
}

// persistOutcomes acknowledges successfully processed items. Failed items
// keep their pending flag and are retried on the next drain.
func (w *SyncWorker) persistOutcomes(ctx context.Context, items []*domain.QueueItem) {
	var done int
	for _, item := range items {
		if !item.SuccessfullyProcessed {
			continue
		}
		if err := w.queue.MarkProcessed(ctx, item); err != nil {
			log.Printf("[SyncWorker] acknowledging item %s failed: %v", item.ID, err)
			continue
		}
		done++
	}
	log.Printf("[SyncWorker] drain finished, %d/%d items processed", done, len(items))
}
