package mailchimp

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/listsync/internal/domain"
)

func TestBuildEntry_DefaultMergeFieldMapping(t *testing.T) {
	f := newFixture(t, baseConfig()) // no merge_field_mapping configured

	c := exportableCustomer("c1", "ada@example.com")
	c.FirstName = "Ada"
	c.LastName = "Lovelace"

	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}

	if entry.MergeFields["FNAME"] != "Ada" {
		t.Errorf("FNAME = %v, want Ada", entry.MergeFields["FNAME"])
	}
	if entry.MergeFields["LNAME"] != "Lovelace" {
		t.Errorf("LNAME = %v, want Lovelace", entry.MergeFields["LNAME"])
	}
}

func TestBuildEntry_EmailCleanup(t *testing.T) {
	f := newFixture(t, baseConfig())

	c := exportableCustomer("c1", "  Ada.Lovelace@Example.COM ")
	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}
	if entry.EmailAddress != "ada.lovelace@example.com" {
		t.Errorf("email = %q, want normalized lowercase", entry.EmailAddress)
	}
}

func TestBuildEntry_NilFieldCoercedToEmptyString(t *testing.T) {
	cfg := baseConfig()
	cfg.MergeFieldMapping = map[string]string{"company": "COMPANY"}
	f := newFixture(t, cfg)

	c := exportableCustomer("c1", "c1@example.com") // no company field set
	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}
	if entry.MergeFields["COMPANY"] != "" {
		t.Errorf("COMPANY = %v, want empty string", entry.MergeFields["COMPANY"])
	}
}

func TestBuildEntry_StatusTransitionVsStatusIfNew(t *testing.T) {
	cases := []struct {
		name        string
		local       string
		remote      domain.RemoteStatus
		wantStatus  domain.RemoteStatus
		wantIfNew   domain.RemoteStatus
	}{
		{"first export", "subscribed", "", domain.StatusSubscribed, ""},
		{"remote already correct", "subscribed", domain.StatusSubscribed, "", domain.StatusSubscribed},
		{"transition", "unsubscribed", domain.StatusSubscribed, domain.StatusUnsubscribed, ""},
		{"unmapped local falls back", "something-odd", domain.StatusSubscribed, domain.StatusUnsubscribed, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, baseConfig())
			c := exportableCustomer("c1", "c1@example.com")
			c.Subscriptions["main"].LocalStatus = tc.local
			c.Subscriptions["main"].RemoteStatus = tc.remote

			entry, err := f.handler.BuildEntry(context.Background(), c)
			if err != nil {
				t.Fatalf("BuildEntry: %v", err)
			}
			if entry.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", entry.Status, tc.wantStatus)
			}
			if entry.StatusIfNew != tc.wantIfNew {
				t.Errorf("status_if_new = %q, want %q", entry.StatusIfNew, tc.wantIfNew)
			}
			if entry.Status != "" && entry.StatusIfNew != "" {
				t.Error("status and status_if_new are mutually exclusive")
			}
		})
	}
}

func TestBuildEntry_CleanedNeverOverwritten(t *testing.T) {
	f := newFixture(t, baseConfig())

	c := exportableCustomer("c1", "c1@example.com")
	c.Subscriptions["main"].LocalStatus = "subscribed" // maps to subscribed
	c.Subscriptions["main"].RemoteStatus = domain.StatusCleaned

	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}

	// The override holds: cleaned stays cleaned, carried as status_if_new
	// since it matches the remote state.
	if got := entry.targetStatus(); got != domain.StatusCleaned {
		t.Errorf("computed status = %q, want cleaned", got)
	}
	if entry.Status != "" {
		t.Errorf("cleaned must never be an explicit transition, got status=%q", entry.Status)
	}
}

func TestBuildEntry_InterestsCoverFullSegmentUniverse(t *testing.T) {
	f := newFixture(t, baseConfig())

	f.source.groups = []domain.SegmentGroup{
		{ID: "g1", Name: "Interests", ExportTo: []string{"main"}},
	}
	f.source.segments["g1"] = []domain.Segment{
		{ID: "s1", GroupID: "g1", Name: "Hiking"},
		{ID: "s2", GroupID: "g1", Name: "Cycling"},
		{ID: "s3", GroupID: "g1", Name: "Running"},
	}
	f.state.segmentIDs = map[string]string{"s1": "r1", "s2": "r2", "s3": "r3"}

	c := exportableCustomer("c1", "c1@example.com")
	c.Segments = []domain.Segment{{ID: "s2", GroupID: "g1", Name: "Cycling"}}

	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}

	want := map[string]bool{"r1": false, "r2": true, "r3": false}
	if len(entry.Interests) != len(want) {
		t.Fatalf("interests = %v, want %v", entry.Interests, want)
	}
	for k, v := range want {
		if entry.Interests[k] != v {
			t.Errorf("interests[%s] = %v, want %v", k, entry.Interests[k], v)
		}
	}
}

func TestBuildEntry_EmptySegmentUniverseOmitsInterests(t *testing.T) {
	f := newFixture(t, baseConfig())

	c := exportableCustomer("c1", "c1@example.com")
	entry, err := f.handler.BuildEntry(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}
	if entry.Interests != nil {
		t.Errorf("expected interests omitted entirely, got %v", entry.Interests)
	}
}

func TestMapMergeField_RoundTrip(t *testing.T) {
	cfg := baseConfig()
	cfg.MergeFieldMapping = map[string]string{"firstname": "FNAME"}
	f := newFixture(t, cfg)

	c := exportableCustomer("c1", "c1@example.com")
	c.FirstName = "Grace"

	m, ok := f.handler.MapMergeField("firstname", c)
	if !ok {
		t.Fatal("MapMergeField returned no mapping")
	}
	if m.Field != "FNAME" || m.Value != "Grace" {
		t.Fatalf("mapped to %+v", m)
	}

	back, ok := f.handler.ReverseMapMergeField(m.Field, m.Value)
	if !ok {
		t.Fatal("ReverseMapMergeField returned no mapping")
	}
	if back.Field != "firstname" || back.Value != "Grace" {
		t.Errorf("round trip gave %+v", back)
	}
}

func TestMapMergeField_TransformerApplied(t *testing.T) {
	cfg := baseConfig()
	cfg.MergeFieldMapping = map[string]string{"birthday": "BDAY"}
	cfg.FieldTransformers = map[string]string{"birthday": "date"}
	f := newFixture(t, cfg)

	c := exportableCustomer("c1", "c1@example.com")
	c.Fields = map[string]any{"birthday": time.Date(1991, 7, 22, 0, 0, 0, 0, time.UTC)}

	m, ok := f.handler.MapMergeField("birthday", c)
	if !ok {
		t.Fatal("MapMergeField returned no mapping")
	}
	if m.Value != "1991-07-22" {
		t.Errorf("transformed value = %v, want 1991-07-22", m.Value)
	}
}

func TestDidMergeFieldDataChange(t *testing.T) {
	cfg := baseConfig()
	cfg.MergeFieldMapping = map[string]string{"zip": "ZIP"}
	cfg.FieldTransformers = map[string]string{"zip": "trim"}
	f := newFixture(t, cfg)

	if f.handler.DidMergeFieldDataChange("zip", " 1010 ", "1010") {
		t.Error("trim transformer should see equal values")
	}
	if !f.handler.DidMergeFieldDataChange("zip", "1010", "2020") {
		t.Error("different values must be reported as changed")
	}
	if !f.handler.DidMergeFieldDataChange("city", "Vienna", "Graz") {
		t.Error("fields without transformer compare directly")
	}
}
