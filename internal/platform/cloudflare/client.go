// Package cloudflare resolves DNS zones and keeps the public records of a
// stack in place through the Cloudflare v4 REST API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client is a minimal Cloudflare API client for zone lookup and DNS
// record management.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets how often transient API errors are retried.
func WithRetry(maxRetries int, initialDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = initialDelay
	}
}

// Zone is a Cloudflare DNS zone.
type Zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Record represents a Cloudflare DNS record.
type Record struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func (r Record) matches(o Record) bool {
	return r.Type == o.Type && strings.EqualFold(r.Name, o.Name) &&
		r.Content == o.Content && r.TTL == o.TTL && r.Proxied == o.Proxied
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

type apiResponse struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info,omitempty"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Errors []apiError
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", ae.Code, ae.Message))
	}
	return fmt.Sprintf("cloudflare API error (status %d): %s", e.Status, strings.Join(msgs, "; "))
}

func (e *APIError) transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// NewClient creates a new Cloudflare API client.
func NewClient(apiToken string, opts ...Option) *Client {
	c := &Client{
		apiToken:   apiToken,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 5,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindZone returns the zone whose name equals name exactly. A missing
// zone is a fatal *provisioning.ZoneNotFoundError.
func (c *Client) FindZone(ctx context.Context, name string) (*Zone, error) {
	name = strings.TrimSuffix(strings.ToLower(name), ".")

	var zones []Zone
	if err := c.call(ctx, http.MethodGet, "/zones?name="+url.QueryEscape(name), nil, &zones); err != nil {
		return nil, fmt.Errorf("get zone %s: %w", name, err)
	}
	for i := range zones {
		if strings.EqualFold(zones[i].Name, name) {
			return &zones[i], nil
		}
	}
	return nil, retry.Fatal(&provisioning.ZoneNotFoundError{Zone: name})
}

// ListDNSRecords returns the records in the zone with the given type and
// name. Empty filters match everything.
func (c *Client) ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]Record, error) {
	var all []Record
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", "100")
		q.Set("page", fmt.Sprint(page))
		if recordType != "" {
			q.Set("type", recordType)
		}
		if name != "" {
			q.Set("name", name)
		}

		var records []Record
		info, err := c.callPaged(ctx, fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, q.Encode()), &records)
		if err != nil {
			return nil, fmt.Errorf("list DNS records page %d: %w", page, err)
		}
		all = append(all, records...)
		if info == nil || page >= info.TotalPages {
			return all, nil
		}
	}
}

// UpsertRecord makes the zone hold exactly one record of want's type and
// name with want's content. Extra duplicates are removed.
func (c *Client) UpsertRecord(ctx context.Context, zoneID string, want Record) (*Record, error) {
	existing, err := c.ListDNSRecords(ctx, zoneID, want.Type, want.Name)
	if err != nil {
		return nil, err
	}

	var kept *Record
	for i := range existing {
		rec := existing[i]
		switch {
		case kept != nil:
			if err := c.DeleteDNSRecord(ctx, zoneID, rec.ID); err != nil {
				return nil, err
			}
		case rec.matches(want):
			kept = &rec
		default:
			var updated Record
			if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, rec.ID), want, &updated); err != nil {
				return nil, fmt.Errorf("update %s record %s: %w", want.Type, want.Name, err)
			}
			kept = &updated
		}
	}
	if kept != nil {
		return kept, nil
	}

	var created Record
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", zoneID), want, &created); err != nil {
		return nil, fmt.Errorf("create %s record %s: %w", want.Type, want.Name, err)
	}
	return &created, nil
}

// DeleteRecords removes every record of the given type and name.
func (c *Client) DeleteRecords(ctx context.Context, zoneID, recordType, name string) error {
	records, err := c.ListDNSRecords(ctx, zoneID, recordType, name)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := c.DeleteDNSRecord(ctx, zoneID, r.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDNSRecord deletes a DNS record by ID.
func (c *Client) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete DNS record %s: %w", recordID, err)
	}
	return nil
}

// challengeTTL keeps resolvers from caching a stale challenge value.
const challengeTTL = 60

// Present publishes an ACME dns-01 challenge value as the only TXT record
// at fqdn in the zone.
func (c *Client) Present(ctx context.Context, zoneID, fqdn, value string) error {
	_, err := c.UpsertRecord(ctx, zoneID, Record{Type: "TXT", Name: fqdn, Content: value, TTL: challengeTTL})
	return err
}

// CleanUp removes the challenge records at fqdn.
func (c *Client) CleanUp(ctx context.Context, zoneID, fqdn string) error {
	return c.DeleteRecords(ctx, zoneID, "TXT", fqdn)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	_, err := c.roundTrip(ctx, method, path, in, out)
	return err
}

func (c *Client) callPaged(ctx context.Context, path string, out any) (*resultInfo, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil, out)
}

// roundTrip sends one request, retrying rate limits and server errors.
func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) (*resultInfo, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var info *resultInfo
	err := retry.WithExponentialBackoff(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return retry.Fatal(err)
		}
		resp, err := c.do(req)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.transient() {
				return retry.Fatal(err)
			}
			return err
		}
		info = resp.ResultInfo
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return retry.Fatal(fmt.Errorf("parse result: %w", err))
			}
		}
		return nil
	}, retry.WithMaxRetries(c.maxRetries), retry.WithInitialDelay(c.retryDelay))
	return info, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out apiResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (len(body) > 0 && !out.Success) {
		return nil, &APIError{Status: resp.StatusCode, Errors: out.Errors}
	}
	return &out, nil
}
