package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/httputil"
	"github.com/ignite/listsync/internal/repository/postgres"
)

// QueueRunner triggers one drain pass on demand.
type QueueRunner interface {
	RunOnce(ctx context.Context)
}

// CustomerDirectory resolves customers for the admin endpoints.
type CustomerDirectory interface {
	ByID(ctx context.Context, id string) (*domain.Customer, error)
}

// ActivityLog reads the audit trail of a customer.
type ActivityLog interface {
	Recent(ctx context.Context, customerID string, limit int) ([]domain.Activity, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	providers  map[string]*mailchimp.Handler
	runner     QueueRunner
	customers  CustomerDirectory
	activities ActivityLog
	health     HealthDeps
	startTime  time.Time
}

// NewHandlers wires the handlers. runner and activities may be nil; the
// corresponding endpoints then report 503.
func NewHandlers(providers []*mailchimp.Handler, runner QueueRunner, customers CustomerDirectory, activities ActivityLog, health HealthDeps) *Handlers {
	byShortcut := make(map[string]*mailchimp.Handler, len(providers))
	for _, h := range providers {
		byShortcut[h.Shortcut()] = h
	}
	return &Handlers{
		providers:  byShortcut,
		runner:     runner,
		customers:  customers,
		activities: activities,
		health:     health,
		startTime:  time.Now(),
	}
}

func (h *Handlers) provider(w http.ResponseWriter, r *http.Request) (*mailchimp.Handler, bool) {
	shortcut := chi.URLParam(r, "shortcut")
	provider, ok := h.providers[shortcut]
	if !ok {
		httputil.NotFound(w, "unknown provider shortcut: "+shortcut)
		return nil, false
	}
	return provider, true
}

// HealthCheck probes the database and Redis.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := "healthy"

	if h.health.DB != nil {
		if err := h.health.DB.PingContext(ctx); err != nil {
			checks["database"] = "down"
			status = "unhealthy"
		} else {
			checks["database"] = "up"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.health.Redis != nil {
		if err := h.health.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["redis"] = "up"
		}
	} else {
		checks["redis"] = "not_configured"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

// WebhookPing answers the provider's URL validation probe.
func (h *Handlers) WebhookPing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.provider(w, r); !ok {
		return
	}
	httputil.OK(w, map[string]string{"status": "ok"})
}

// ReceiveWebhook ingests one provider notification. The provider posts
// form-encoded payloads; JSON is accepted too for manual replays.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	event, err := parseWebhookRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := provider.ProcessWebhook(r.Context(), event); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ok"})
}

// parseWebhookRequest decodes either encoding into a WebhookEvent.
func parseWebhookRequest(r *http.Request) (mailchimp.WebhookEvent, error) {
	var event mailchimp.WebhookEvent

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			return event, errors.New("invalid JSON payload")
		}
		return event, nil
	}

	if err := r.ParseForm(); err != nil {
		return event, errors.New("invalid form payload")
	}
	event.Type = r.PostFormValue("type")
	event.FiredAt = r.PostFormValue("fired_at")
	event.Data = mailchimp.WebhookData{
		ListID:   r.PostFormValue("data[list_id]"),
		Email:    r.PostFormValue("data[email]"),
		NewEmail: r.PostFormValue("data[new_email]"),
		Reason:   r.PostFormValue("data[reason]"),
	}

	// Merge fields arrive as data[merges][FNAME]=... pairs.
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "data[merges][") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		field := key[len("data[merges][") : len(key)-1]
		if event.Data.Merges == nil {
			event.Data.Merges = make(map[string]any)
		}
		event.Data.Merges[field] = values[0]
	}
	return event, nil
}

// TriggerQueueRun runs one synchronous drain pass.
func (h *Handlers) TriggerQueueRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "queue runner not available")
		return
	}
	h.runner.RunOnce(r.Context())
	httputil.OK(w, map[string]string{"status": "completed"})
}

// TriggerSegmentSync reconciles the remote segment tree for one provider.
// ?force=true pushes renames to already-mapped groups and segments.
func (h *Handlers) TriggerSegmentSync(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := provider.UpdateSegmentGroups(r.Context(), force); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "completed"})
}

func (h *Handlers) loadCustomer(w http.ResponseWriter, r *http.Request) (*domain.Customer, bool) {
	id := chi.URLParam(r, "id")
	c, err := h.customers.ByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "unknown customer: "+id)
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	return c, true
}

// SubscribeCustomer flips a customer to subscribed on one provider and
// pushes the change immediately.
func (h *Handlers) SubscribeCustomer(w http.ResponseWriter, r *http.Request) {
	h.applyStatus(w, r, func(ctx context.Context, p *mailchimp.Handler, c *domain.Customer) error {
		return p.SubscribeCustomer(ctx, c)
	})
}

// UnsubscribeCustomer is the counterpart of SubscribeCustomer.
func (h *Handlers) UnsubscribeCustomer(w http.ResponseWriter, r *http.Request) {
	h.applyStatus(w, r, func(ctx context.Context, p *mailchimp.Handler, c *domain.Customer) error {
		return p.UnsubscribeCustomer(ctx, c)
	})
}

func (h *Handlers) applyStatus(w http.ResponseWriter, r *http.Request, apply func(context.Context, *mailchimp.Handler, *domain.Customer) error) {
	shortcut := r.URL.Query().Get("shortcut")
	provider, ok := h.providers[shortcut]
	if !ok {
		httputil.BadRequest(w, "missing or unknown shortcut parameter")
		return
	}

	c, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}

	if err := apply(r.Context(), provider, c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ok", "customer_id": c.ID})
}

// CustomerActivities returns the latest audit events of a customer.
func (h *Handlers) CustomerActivities(w http.ResponseWriter, r *http.Request) {
	if h.activities == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "activity log not available")
		return
	}
	c, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	activities, err := h.activities.Recent(r.Context(), c.ID, 50)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"customer_id": c.ID, "activities": activities})
}
