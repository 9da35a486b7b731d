package export

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
)

var _ mailchimp.SegmentExporter = (*Client)(nil)

type interestCategory struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

type interestCategoryList struct {
	Categories []interestCategory `json:"categories"`
	TotalItems int                `json:"total_items"`
}

type interest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type interestList struct {
	Interests  []interest `json:"interests"`
	TotalItems int        `json:"total_items"`
}

// ExportGroup upserts the interest category for a segment group. A group
// without a stored remote id is created; an already-mapped group is only
// touched when forceUpdate asks for a rename push.
func (c *Client) ExportGroup(ctx context.Context, group domain.SegmentGroup, listID string, forceUpdate bool) (string, bool, error) {
	remoteID, ok, err := c.mappings.RemoteGroupID(ctx, listID, group.ID)
	if err != nil {
		return "", false, fmt.Errorf("lookup group mapping: %w", err)
	}

	if ok {
		if forceUpdate {
			endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s", listID, remoteID)
			if _, err := c.doRequest(ctx, http.MethodPatch, endpoint, interestCategory{Title: group.Name}); err != nil {
				if !IsNotFound(err) {
					return "", false, fmt.Errorf("update category %s: %w", remoteID, err)
				}
				// Mapping points at a category deleted remotely; recreate.
				ok = false
			}
		}
		if ok {
			return remoteID, false, nil
		}
	}

	endpoint := fmt.Sprintf("/lists/%s/interest-categories", listID)
	respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, interestCategory{Title: group.Name, Type: "checkboxes"})
	if err != nil {
		return "", false, fmt.Errorf("create category for group %s: %w", group.ID, err)
	}

	var created interestCategory
	if err := decodeBody(respBody, &created); err != nil {
		return "", false, fmt.Errorf("parse category response: %w", err)
	}
	if err := c.mappings.SaveGroupMapping(ctx, listID, group.ID, created.ID); err != nil {
		return "", false, fmt.Errorf("save group mapping: %w", err)
	}
	log.Printf("[MailchimpExport] created interest category %s for group %s", created.ID, group.ID)
	return created.ID, true, nil
}

// ExportSegment upserts the interest for a segment under its remote
// category. forceCreate bypasses the mapping lookup: a freshly created
// category cannot hold any interest the mapping could still point at.
func (c *Client) ExportSegment(ctx context.Context, segment domain.Segment, listID, remoteGroupID string, forceCreate, forceUpdate bool) (string, error) {
	if !forceCreate {
		remoteID, ok, err := c.mappings.RemoteSegmentID(ctx, listID, segment.ID)
		if err != nil {
			return "", fmt.Errorf("lookup segment mapping: %w", err)
		}
		if ok {
			if forceUpdate {
				endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s/interests/%s", listID, remoteGroupID, remoteID)
				if _, err := c.doRequest(ctx, http.MethodPatch, endpoint, interest{Name: segment.Name}); err != nil {
					return "", fmt.Errorf("update interest %s: %w", remoteID, err)
				}
			}
			return remoteID, nil
		}
	}

	endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s/interests", listID, remoteGroupID)
	respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, interest{Name: segment.Name})
	if err != nil {
		return "", fmt.Errorf("create interest for segment %s: %w", segment.ID, err)
	}

	var created interest
	if err := decodeBody(respBody, &created); err != nil {
		return "", fmt.Errorf("parse interest response: %w", err)
	}
	if err := c.mappings.SaveSegmentMapping(ctx, listID, segment.ID, created.ID); err != nil {
		return "", fmt.Errorf("save segment mapping: %w", err)
	}
	return created.ID, nil
}

// DeleteMissingSegments removes remote interests under the category that
// no local segment maps to anymore.
func (c *Client) DeleteMissingSegments(ctx context.Context, listID, remoteGroupID string, keep []string) error {
	endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s/interests?count=200", listID, remoteGroupID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("list interests: %w", err)
	}

	var remote interestList
	if err := decodeBody(respBody, &remote); err != nil {
		return fmt.Errorf("parse interests response: %w", err)
	}

	keepSet := toSet(keep)
	for _, in := range remote.Interests {
		if keepSet[in.ID] {
			continue
		}
		endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s/interests/%s", listID, remoteGroupID, in.ID)
		if _, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil); err != nil && !IsNotFound(err) {
			return fmt.Errorf("delete interest %s: %w", in.ID, err)
		}
		log.Printf("[MailchimpExport] pruned remote interest %s (%s)", in.ID, in.Name)
	}
	return nil
}

// DeleteMissingGroups removes remote interest categories with no local
// counterpart. Runs after segment pruning so a category is only swept once
// its own interests were reconciled.
func (c *Client) DeleteMissingGroups(ctx context.Context, listID string, keep []string) error {
	endpoint := fmt.Sprintf("/lists/%s/interest-categories?count=200", listID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	var remote interestCategoryList
	if err := decodeBody(respBody, &remote); err != nil {
		return fmt.Errorf("parse categories response: %w", err)
	}

	keepSet := toSet(keep)
	for _, cat := range remote.Categories {
		if keepSet[cat.ID] {
			continue
		}
		endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s", listID, cat.ID)
		if _, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil); err != nil && !IsNotFound(err) {
			return fmt.Errorf("delete category %s: %w", cat.ID, err)
		}
		log.Printf("[MailchimpExport] pruned remote interest category %s (%s)", cat.ID, cat.Title)
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
