package export

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/ignite/listsync/internal/domain"
)

func TestExportGroup_CreatesAndSavesMapping(t *testing.T) {
	client, mappings, requests := newTestClient(t, okJSON(`{"id":"cat-1","title":"Interests"}`))

	group := domain.SegmentGroup{ID: "g1", Name: "Interests", ExportTo: []string{"main"}}
	remoteID, created, err := client.ExportGroup(context.Background(), group, "list-1", false)
	if err != nil {
		t.Fatalf("ExportGroup: %v", err)
	}
	if remoteID != "cat-1" || !created {
		t.Errorf("got (%s, %v), want (cat-1, true)", remoteID, created)
	}
	if mappings.groups["g1"] != "cat-1" {
		t.Errorf("mapping not saved: %v", mappings.groups)
	}
	if (*requests)[0].Method != http.MethodPost {
		t.Errorf("method = %s, want POST", (*requests)[0].Method)
	}
}

func TestExportGroup_MappedGroupSkipsAPI(t *testing.T) {
	client, mappings, requests := newTestClient(t, okJSON(`{}`))
	mappings.groups["g1"] = "cat-1"

	group := domain.SegmentGroup{ID: "g1", Name: "Interests"}
	remoteID, created, err := client.ExportGroup(context.Background(), group, "list-1", false)
	if err != nil {
		t.Fatalf("ExportGroup: %v", err)
	}
	if remoteID != "cat-1" || created {
		t.Errorf("got (%s, %v), want (cat-1, false)", remoteID, created)
	}
	if len(*requests) != 0 {
		t.Errorf("mapped group without forceUpdate made %d API calls, want 0", len(*requests))
	}
}

func TestExportGroup_ForceUpdatePatchesTitle(t *testing.T) {
	client, mappings, requests := newTestClient(t, okJSON(`{}`))
	mappings.groups["g1"] = "cat-1"

	group := domain.SegmentGroup{ID: "g1", Name: "Renamed"}
	if _, _, err := client.ExportGroup(context.Background(), group, "list-1", true); err != nil {
		t.Fatalf("ExportGroup: %v", err)
	}

	req := (*requests)[0]
	if req.Method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", req.Method)
	}
	if req.Path != "/lists/list-1/interest-categories/cat-1" {
		t.Errorf("path = %s", req.Path)
	}
}

func TestExportSegment_ForceCreateSkipsMappingLookup(t *testing.T) {
	client, mappings, requests := newTestClient(t, okJSON(`{"id":"int-new","name":"VIP"}`))
	// Stale mapping from a category that was deleted and recreated.
	mappings.segments["s1"] = "int-old"

	segment := domain.Segment{ID: "s1", GroupID: "g1", Name: "VIP"}
	remoteID, err := client.ExportSegment(context.Background(), segment, "list-1", "cat-2", true, false)
	if err != nil {
		t.Fatalf("ExportSegment: %v", err)
	}
	if remoteID != "int-new" {
		t.Errorf("remoteID = %s, want int-new (fresh create)", remoteID)
	}
	if mappings.segments["s1"] != "int-new" {
		t.Errorf("mapping not overwritten: %v", mappings.segments)
	}
	if (*requests)[0].Method != http.MethodPost {
		t.Errorf("method = %s, want POST under the new category", (*requests)[0].Method)
	}
}

func TestExportSegment_MappedSegmentReturnsID(t *testing.T) {
	client, mappings, requests := newTestClient(t, okJSON(`{}`))
	mappings.segments["s1"] = "int-1"

	segment := domain.Segment{ID: "s1", GroupID: "g1", Name: "VIP"}
	remoteID, err := client.ExportSegment(context.Background(), segment, "list-1", "cat-1", false, false)
	if err != nil {
		t.Fatalf("ExportSegment: %v", err)
	}
	if remoteID != "int-1" {
		t.Errorf("remoteID = %s, want int-1", remoteID)
	}
	if len(*requests) != 0 {
		t.Errorf("made %d API calls, want 0", len(*requests))
	}
}

func TestDeleteMissingSegments_PrunesUnknown(t *testing.T) {
	client, _, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"interests":[{"id":"int-1"},{"id":"int-2"},{"id":"int-3"}],"total_items":3}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	err := client.DeleteMissingSegments(context.Background(), "list-1", "cat-1", []string{"int-1", "int-3"})
	if err != nil {
		t.Fatalf("DeleteMissingSegments: %v", err)
	}

	var deleted []string
	for _, req := range *requests {
		if req.Method == http.MethodDelete {
			deleted = append(deleted, req.Path)
		}
	}
	want := "/lists/list-1/interest-categories/cat-1/interests/int-2"
	if len(deleted) != 1 || deleted[0] != want {
		t.Errorf("deleted %v, want just %s", deleted, want)
	}
}

func TestDeleteMissingGroups_PrunesUnknown(t *testing.T) {
	client, _, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"categories":[{"id":"cat-1","title":"Keep"},{"id":"cat-2","title":"Orphan"}],"total_items":2}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	if err := client.DeleteMissingGroups(context.Background(), "list-1", []string{"cat-1"}); err != nil {
		t.Fatalf("DeleteMissingGroups: %v", err)
	}

	var deleted []string
	for _, req := range *requests {
		if req.Method == http.MethodDelete {
			deleted = append(deleted, req.Path)
		}
	}
	want := "/lists/list-1/interest-categories/cat-2"
	if len(deleted) != 1 || deleted[0] != want {
		t.Errorf("deleted %v, want just %s", deleted, want)
	}
}
