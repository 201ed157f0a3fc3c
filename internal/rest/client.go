package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/restbridge/internal/postgrest"
)

// DefaultTimeout bounds a single request when no HTTP client is given.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when a single-record request matches no row.
var ErrNotFound = errors.New("record not found")

// Options configures a Client.
type Options struct {
	// Endpoint is the PostgREST base URL, e.g. https://db.example.com/rest/v1.
	Endpoint string

	// APIKey is sent as the apikey header and as a bearer token.
	APIKey string

	// Schema selects a non-default schema (Accept-Profile/Content-Profile).
	Schema string

	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	Burst     int

	HTTPClient *http.Client
	Encoder    *postgrest.Encoder
	Logger     *slog.Logger
}

// Client talks to one PostgREST endpoint.
// A Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	apiKey  string
	schema  string
	http    *http.Client
	enc     *postgrest.Encoder
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("rest: endpoint is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: invalid endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported endpoint scheme %q", base.Scheme)
	}

	c := &Client{
		base:   base,
		apiKey: opts.APIKey,
		schema: opts.Schema,
		http:   opts.HTTPClient,
		enc:    opts.Encoder,
		logger: opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.enc == nil {
		c.enc = postgrest.NewEncoder(nil)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// Sort orders a list by one field.
type Sort struct {
	Field string
	Desc  bool
}

// ListQuery selects rows of a table or view.
type ListQuery struct {
	Wire   postgrest.Wire
	Select string
	Sort   []Sort

	// Offset and Limit page the result; Limit zero means no paging.
	Offset int
	Limit  int

	// Count asks for the exact total row count.
	Count bool
}

// ListResult is one page of rows.
type ListResult struct {
	Records []postgrest.Record

	// Total is the exact row count, or -1 when it was not requested or
	// not reported.
	Total int
}

// List fetches rows of target matching q.
func (c *Client) List(ctx context.Context, target string, q ListQuery) (*ListResult, error) {
	params := c.enc.Values(q.Wire)
	if q.Select != "" {
		params.Set("select", q.Select)
	}
	if order := formatOrder(q.Sort); order != "" {
		params.Set("order", order)
	}

	header := http.Header{}
	if q.Limit > 0 {
		header.Set("Range-Unit", "items")
		header.Set("Range", fmt.Sprintf("%d-%d", q.Offset, q.Offset+q.Limit-1))
	}
	if q.Count {
		header.Set("Prefer", "count=exact")
	}

	resp, body, err := c.do(ctx, http.MethodGet, target, params, header, nil)
	if err != nil {
		return nil, err
	}
	records, err := postgrest.DecodeRecords(body)
	if err != nil {
		return nil, err
	}
	return &ListResult{Records: records, Total: parseTotal(resp.Header.Get("Content-Range"))}, nil
}

// Get fetches the row of target with the given id.
func (c *Client) Get(ctx context.Context, target string, id any) (postgrest.Record, error) {
	params := idFilter(id)
	_, body, err := c.do(ctx, http.MethodGet, target, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return single(body, target, id)
}

// Insert creates a row and returns it.
func (c *Client) Insert(ctx context.Context, target string, data map[string]any) (postgrest.Record, error) {
	header := http.Header{"Prefer": {"return=representation"}}
	_, body, err := c.do(ctx, http.MethodPost, target, nil, header, data)
	if err != nil {
		return nil, err
	}
	return single(body, target, nil)
}

// Update patches the row with the given id and returns it.
func (c *Client) Update(ctx context.Context, target string, id any, data map[string]any) (postgrest.Record, error) {
	header := http.Header{"Prefer": {"return=representation"}}
	_, body, err := c.do(ctx, http.MethodPatch, target, idFilter(id), header, data)
	if err != nil {
		return nil, err
	}
	return single(body, target, id)
}

// Delete removes the row with the given id and returns it.
func (c *Client) Delete(ctx context.Context, target string, id any) (postgrest.Record, error) {
	header := http.Header{"Prefer": {"return=representation"}}
	_, body, err := c.do(ctx, http.MethodDelete, target, idFilter(id), header, nil)
	if err != nil {
		return nil, err
	}
	return single(body, target, id)
}

// Call invokes a database procedure through /rpc/<procedure>.
func (c *Client) Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	_, body, err := c.do(ctx, http.MethodPost, "rpc/"+procedure, nil, nil, args)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// do sends one request. Non-2xx responses become *postgrest.Error.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, header http.Header, payload any) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rest: rate limit: %w", err)
		}
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("rest: encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("rest: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.schema != "" {
		if method == http.MethodGet || method == http.MethodHead {
			req.Header.Set("Accept-Profile", c.schema)
		} else {
			req.Header.Set("Content-Profile", c.schema)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("rest: read %s response: %w", path, err)
	}

	c.logger.Debug("postgrest request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, postgrest.ParseError(resp.StatusCode, data)
	}
	return resp, data, nil
}

func idFilter(id any) url.Values {
	return url.Values{"id": {"eq." + postgrest.Stringify(id)}}
}

// single returns the first record of a representation response.
func single(body []byte, target string, id any) (postgrest.Record, error) {
	records, err := postgrest.DecodeRecords(body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		if id == nil {
			return nil, fmt.Errorf("%s: empty representation: %w", target, ErrNotFound)
		}
		return nil, fmt.Errorf("%s id=%s: %w", target, postgrest.Stringify(id), ErrNotFound)
	}
	return records[0], nil
}

func formatOrder(sorts []Sort) string {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		if s.Field == "" {
			continue
		}
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		parts = append(parts, s.Field+"."+dir)
	}
	return strings.Join(parts, ",")
}

// parseTotal reads the total from a Content-Range header ("0-24/318",
// "*/0"). Returns -1 when absent or unknown ("0-24/*").
func parseTotal(contentRange string) int {
	_, total, ok := strings.Cut(contentRange, "/")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return -1
	}
	return n
}
