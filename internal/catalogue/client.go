// Package catalogue implements the client for the external catalogue
// service, the source of record for resource and group metadata. It is
// queried only on cache miss.
package catalogue

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/datumgrid/gis-resource-server/internal/logger"
)

// ResponseTypeSuccess is the marker the catalogue sets on a successful
// search response.
const ResponseTypeSuccess = "urn:dx:cat:Success"

var (
	// ErrNotFound indicates the catalogue answered but holds no matching
	// item, or answered with an unexpected shape.
	ErrNotFound = errors.New("catalogue item not found")

	// ErrUnavailable indicates the catalogue request could not be completed.
	ErrUnavailable = errors.New("catalogue request failed")
)

// Client resolves group access policies and resource existence upstream.
type Client interface {
	// GroupAccessPolicy returns the declared accessPolicy of a resource
	// group.
	GroupAccessPolicy(ctx context.Context, groupID string) (string, error)

	// ResourceExists reports whether the exact resource id is catalogued.
	// The error is non-nil only when the lookup could not be completed.
	ResourceExists(ctx context.Context, id string) (bool, error)
}

// Config holds the catalogue endpoint settings.
type Config struct {
	Host       string
	Port       int
	SearchPath string
	TLS        bool
	Timeout    time.Duration
}

// HTTPClient is the production Client over the catalogue search API.
type HTTPClient struct {
	searchURL string
	client    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a catalogue client with a pooled transport and the
// configured per-request timeout.
func NewHTTPClient(cfg Config) *HTTPClient {
	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Timeout

	return &HTTPClient{
		searchURL: fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, cfg.Port, cfg.SearchPath),
		client:    httpClient,
	}
}

// searchResponse is the catalogue search response body.
type searchResponse struct {
	Type      string `json:"type"`
	TotalHits int    `json:"totalHits"`
	Results   []struct {
		ID           string `json:"id"`
		AccessPolicy string `json:"accessPolicy"`
	} `json:"results"`
}

// GroupAccessPolicy queries the catalogue for the group's accessPolicy field.
func (c *HTTPClient) GroupAccessPolicy(ctx context.Context, groupID string) (string, error) {
	body, err := c.search(ctx, groupID, "[accessPolicy]")
	if err != nil {
		return "", err
	}
	if body.Type != ResponseTypeSuccess {
		return "", ErrNotFound
	}
	if len(body.Results) == 0 || body.Results[0].AccessPolicy == "" {
		logger.Debugf("group id invalid, empty results from catalogue: %s", groupID)
		return "", ErrNotFound
	}
	return body.Results[0].AccessPolicy, nil
}

// ResourceExists queries the catalogue for the exact resource id.
func (c *HTTPClient) ResourceExists(ctx context.Context, id string) (bool, error) {
	body, err := c.search(ctx, id, "[id]")
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if body.Type != ResponseTypeSuccess {
		return false, nil
	}
	if body.TotalHits == 0 {
		logger.Debugf("resource id invalid, catalogue item not found: %s", id)
		return false, nil
	}
	return true, nil
}

// search issues the catalogue lookup with the fixed property/value/filter
// query shape.
func (c *HTTPClient) search(ctx context.Context, id, filter string) (*searchResponse, error) {
	q := url.Values{}
	q.Set("property", "[id]")
	q.Set("value", "[["+id+"]]")
	q.Set("filter", filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Errorf("catalogue request failed for id (%s): %v", id, err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &body, nil
}
