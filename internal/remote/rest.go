package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/umer2k200/lifesync/internal/record"
)

// Config holds REST client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.example.com
	BaseURL string

	// APIKey authenticates every request (apikey + bearer headers).
	APIKey string

	// Timeout bounds each request end to end so a dead network can
	// never suspend a sync operation indefinitely.
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; the burst equals the
	// rate. Zero disables pacing.
	RequestsPerSecond int
}

// DefaultConfig returns sensible defaults for the given backend.
func DefaultConfig(baseURL, apiKey string) *Config {
	return &Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
	}
}

// REST is a Client speaking a PostgREST-style row API: one resource per
// table under /rest/v1/, filters as query parameters, write behavior
// selected through the Prefer header.
type REST struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewREST creates a REST client from the given configuration.
func NewREST(config *Config) (*REST, error) {
	if config == nil || config.BaseURL == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.RequestsPerSecond)
	}

	return &REST{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

// Select implements Client.Select.
func (c *REST) Select(ctx context.Context, table, userID string, filter *record.Filter) ([]record.Record, error) {
	query := filter.Query()
	query.Set(record.FieldUserID, "eq."+userID)
	query.Set("select", "*")

	var rows []record.Record
	if err := c.do(ctx, http.MethodGet, table, query, nil, "", &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []record.Record{}
	}
	return rows, nil
}

// Insert implements Client.Insert.
func (c *REST) Insert(ctx context.Context, table, userID string, fields map[string]any) (record.Record, error) {
	body := record.New(userID, fields)

	var rows []record.Record
	if err := c.do(ctx, http.MethodPost, table, nil, body, "return=representation", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return rows[0], nil
}

// Update implements Client.Update.
func (c *REST) Update(ctx context.Context, table, id string, fields map[string]any) error {
	query := url.Values{}
	query.Set(record.FieldID, "eq."+id)
	return c.do(ctx, http.MethodPatch, table, query, fields, "return=minimal", nil)
}

// Delete implements Client.Delete.
func (c *REST) Delete(ctx context.Context, table, id string) error {
	query := url.Values{}
	query.Set(record.FieldID, "eq."+id)
	return c.do(ctx, http.MethodDelete, table, query, nil, "return=minimal", nil)
}

// Upsert implements Client.Upsert.
func (c *REST) Upsert(ctx context.Context, table string, rec record.Record) error {
	prefer := "resolution=merge-duplicates,return=minimal"
	return c.do(ctx, http.MethodPost, table, nil, rec, prefer, nil)
}

// do issues one JSON request and decodes the response into out (if non-nil).
// Non-2xx statuses become *APIError.
func (c *REST) do(ctx context.Context, method, table string, query url.Values, body any, prefer string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", table, err)
	}

	return nil
}
