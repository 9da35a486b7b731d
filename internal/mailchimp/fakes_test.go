package mailchimp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/domain"
)

// fakeSingle records every single-export call.
type fakeSingle struct {
	mu      sync.Mutex
	calls   []*domain.QueueItem
	entries []*Entry
	failFor map[string]bool // customer ids whose export should fail
}

func (f *fakeSingle) ExportOne(_ context.Context, item *domain.QueueItem, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[item.CustomerID] {
		return errors.New("simulated transport failure")
	}
	f.calls = append(f.calls, item)
	f.entries = append(f.entries, entry)
	return nil
}

// fakeBatch records every batch-export call.
type fakeBatch struct {
	calls   [][]*domain.QueueItem
	entries [][]*Entry
	err     error
}

func (f *fakeBatch) ExportBatch(_ context.Context, items []*domain.QueueItem, entries []*Entry) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, items)
	f.entries = append(f.entries, entries)
	return nil
}

// fakeState is an in-memory export-state store with a scripted "changed"
// answer and a fixed segment id mapping.
type fakeState struct {
	changed    bool
	changedErr error
	recorded   map[string]*Entry // customerID -> last entry
	cleared    []string
	segmentIDs map[string]string // local segment id -> remote id
}

func newFakeState() *fakeState {
	return &fakeState{
		changed:    true,
		recorded:   make(map[string]*Entry),
		segmentIDs: make(map[string]string),
	}
}

func (f *fakeState) DidChangeSinceLastExport(_ context.Context, customerID, _ string, _ *Entry) (bool, error) {
	return f.changed, f.changedErr
}

func (f *fakeState) RecordExport(_ context.Context, customerID, _ string, entry *Entry) error {
	f.recorded[customerID] = entry
	return nil
}

func (f *fakeState) ClearExport(_ context.Context, customerID, _ string) error {
	f.cleared = append(f.cleared, customerID)
	return nil
}

func (f *fakeState) RemoteSegmentID(_ context.Context, _, segmentID string) (string, error) {
	if id, ok := f.segmentIDs[segmentID]; ok {
		return id, nil
	}
	return "", fmt.Errorf("no remote id for segment %s", segmentID)
}

// fakeSegmentSource serves a fixed segment universe.
type fakeSegmentSource struct {
	groups   []domain.SegmentGroup
	segments map[string][]domain.Segment // group id -> segments
}

func (f *fakeSegmentSource) ExportableGroups(_ context.Context, shortcut string) ([]domain.SegmentGroup, error) {
	var out []domain.SegmentGroup
	for _, g := range f.groups {
		if g.ExportableFor(shortcut) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeSegmentSource) SegmentsInGroup(_ context.Context, groupID string) ([]domain.Segment, error) {
	return f.segments[groupID], nil
}

func (f *fakeSegmentSource) ExportableSegments(_ context.Context, shortcut string) ([]domain.Segment, error) {
	var out []domain.Segment
	for _, g := range f.groups {
		if g.ExportableFor(shortcut) {
			out = append(out, f.segments[g.ID]...)
		}
	}
	return out, nil
}

// fakeCustomers is an in-memory customer store keyed by email.
type fakeCustomers struct {
	byEmail map[string]*domain.Customer
	saves   []domain.SaveOptions
	saved   []*domain.Customer
}

func newFakeCustomers(customers ...*domain.Customer) *fakeCustomers {
	f := &fakeCustomers{byEmail: make(map[string]*domain.Customer)}
	for _, c := range customers {
		f.byEmail[CleanEmail(c.Email)] = c
	}
	return f
}

func (f *fakeCustomers) ByEmail(_ context.Context, email string) (*domain.Customer, error) {
	return f.byEmail[email], nil
}

func (f *fakeCustomers) Save(_ context.Context, c *domain.Customer, opts domain.SaveOptions) error {
	f.saved = append(f.saved, c)
	f.saves = append(f.saves, opts)
	return nil
}

// fakeActivity records tracked events.
type fakeActivity struct {
	events []domain.Activity
}

func (f *fakeActivity) Track(_ context.Context, a domain.Activity) error {
	f.events = append(f.events, a)
	return nil
}

// fakeSegmentExporter records the reconciliation calls.
type fakeSegmentExporter struct {
	remoteIDs       map[string]string // local group/segment id -> remote id
	createdGroups   map[string]bool   // local group ids reported as created
	exportedGroups  []string
	exportedSegs    []string
	forcedCreates   []string
	prunedSegCalls  map[string][]string // remote group id -> keep list
	prunedGroupKeep []string
}

func newFakeSegmentExporter() *fakeSegmentExporter {
	return &fakeSegmentExporter{
		remoteIDs:      make(map[string]string),
		createdGroups:  make(map[string]bool),
		prunedSegCalls: make(map[string][]string),
	}
}

func (f *fakeSegmentExporter) ExportGroup(_ context.Context, group domain.SegmentGroup, _ string, _ bool) (string, bool, error) {
	f.exportedGroups = append(f.exportedGroups, group.ID)
	remote, ok := f.remoteIDs[group.ID]
	if !ok {
		remote = "remote-" + group.ID
	}
	return remote, f.createdGroups[group.ID], nil
}

func (f *fakeSegmentExporter) ExportSegment(_ context.Context, segment domain.Segment, _, _ string, forceCreate, _ bool) (string, error) {
	f.exportedSegs = append(f.exportedSegs, segment.ID)
	if forceCreate {
		f.forcedCreates = append(f.forcedCreates, segment.ID)
	}
	remote, ok := f.remoteIDs[segment.ID]
	if !ok {
		remote = "remote-" + segment.ID
	}
	return remote, nil
}

func (f *fakeSegmentExporter) DeleteMissingSegments(_ context.Context, _, remoteGroupID string, keep []string) error {
	f.prunedSegCalls[remoteGroupID] = keep
	return nil
}

func (f *fakeSegmentExporter) DeleteMissingGroups(_ context.Context, _ string, keep []string) error {
	f.prunedGroupKeep = keep
	return nil
}

// testFixture bundles a handler with all its fakes.
type testFixture struct {
	handler   *Handler
	single    *fakeSingle
	batch     *fakeBatch
	state     *fakeState
	segments  *fakeSegmentExporter
	source    *fakeSegmentSource
	customers *fakeCustomers
	activity  *fakeActivity
}

func newFixture(t interface{ Fatalf(string, ...any) }, cfg config.ProviderConfig, customers ...*domain.Customer) *testFixture {
	f := &testFixture{
		single:    &fakeSingle{failFor: make(map[string]bool)},
		batch:     &fakeBatch{},
		state:     newFakeState(),
		segments:  newFakeSegmentExporter(),
		source:    &fakeSegmentSource{segments: make(map[string][]domain.Segment)},
		customers: newFakeCustomers(customers...),
		activity:  &fakeActivity{},
	}

	h, err := NewHandler(cfg, Deps{
		Single:        f.single,
		Batch:         f.batch,
		Segments:      f.segments,
		State:         f.state,
		SegmentSource: f.source,
		Customers:     f.customers,
		Activity:      f.activity,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	f.handler = h
	return f
}

func baseConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Shortcut: "main",
		ListID:   "list-1",
		StatusMapping: map[string]string{
			"subscribed":   "subscribed",
			"unsubscribed": "unsubscribed",
			"pending":      "pending",
		},
		ReverseStatusMapping: map[string]string{
			"subscribed":   "subscribed",
			"unsubscribed": "unsubscribed",
			"pending":      "pending",
			"cleaned":      "unsubscribed",
		},
		BatchThreshold: 50,
	}
}

func exportableCustomer(id, email string) *domain.Customer {
	return &domain.Customer{
		ID:    id,
		Email: email,
		Subscriptions: map[string]*domain.ProviderSubscription{
			"main": {Exportable: true, LocalStatus: "subscribed"},
		},
	}
}

func updateItem(c *domain.Customer) *domain.QueueItem {
	return &domain.QueueItem{
		ID:         "item-" + c.ID,
		CustomerID: c.ID,
		Customer:   c,
		Email:      c.Email,
		Operation:  domain.OperationUpdate,
	}
}
