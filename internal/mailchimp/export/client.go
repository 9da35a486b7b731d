// Package export talks to the provider API. It implements the exporter and
// state interfaces the mailchimp handler is wired with: single member
// upserts, batch operations, and interest-category maintenance.
package export

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/pkg/httpretry"
)

// Client is the provider API client for one configured list.
type Client struct {
	baseURL    string
	apiKey     string
	listID     string
	mappings   MappingStore
	httpClient httpretry.HTTPDoer
}

// MappingStore persists the local segment tree's remote ids between segment
// sync runs.
type MappingStore interface {
	RemoteGroupID(ctx context.Context, listID, groupID string) (id string, ok bool, err error)
	SaveGroupMapping(ctx context.Context, listID, groupID, remoteID string) error
	RemoteSegmentID(ctx context.Context, listID, segmentID string) (id string, ok bool, err error)
	SaveSegmentMapping(ctx context.Context, listID, segmentID, remoteID string) error
}

// NewClient creates an API client from the provider config.
func NewClient(cfg config.ProviderConfig, mappings MappingStore) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		listID:   cfg.ListID,
		mappings: mappings,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// APIError is a non-2xx provider response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 provider response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// doRequest performs an authenticated request against the provider API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// The provider ignores the username part of basic auth.
	req.SetBasicAuth("anystring", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Detail: string(respBody)}
	}

	return respBody, nil
}

func encodeBody(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeBody(data []byte, dst interface{}) error {
	return json.Unmarshal(data, dst)
}

// SubscriberHash returns the member id for an email address: the provider
// addresses members by the MD5 of the lowercased address.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
