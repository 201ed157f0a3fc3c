package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restbridge/internal/postgrest"
)

type captured struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   []byte
}

type fakeServer struct {
	mu       sync.Mutex
	requests []captured
	status   int
	header   http.Header
	body     string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, captured{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.Query(),
		header: r.Header.Clone(),
		body:   body,
	})
	f.mu.Unlock()

	for k, vs := range f.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, f.body)
}

func (f *fakeServer) last(t *testing.T) captured {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, f *fakeServer, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	opts := Options{
		Endpoint: srv.URL + "/rest/v1",
		APIKey:   "anon-key",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = New(Options{Endpoint: "ftp://example.com"})
	assert.ErrorContains(t, err, "unsupported endpoint scheme")

	_, err = New(Options{Endpoint: "https://example.com/rest/v1/"})
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	f := &fakeServer{
		header: http.Header{"Content-Range": {"0-1/318"}},
		body:   `[{"id": 1, "first_name": "Ada"}, {"id": 2, "first_name": "Grace"}]`,
	}
	c := newTestClient(t, f)

	res, err := c.List(context.Background(), "contacts_summary", ListQuery{
		Wire: postgrest.Wire{
			"status":    "active",
			"tags@cs":   "{1,2}",
			"or@":       "(first_name.ilike.*ada*,last_name.ilike.*ada*)",
			"q":         "   ",
			"id@in":     "(1,2)",
			"last_seen": nil,
		},
		Sort:   []Sort{{Field: "last_seen", Desc: true}, {Field: "id"}},
		Offset: 25,
		Limit:  25,
		Count:  true,
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "Ada", res.Records[0]["first_name"])
	assert.Equal(t, 318, res.Total)

	req := f.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/rest/v1/contacts_summary", req.path)
	assert.Equal(t, []string{"eq.active"}, req.query["status"])
	assert.Equal(t, []string{"cs.{1,2}"}, req.query["tags"])
	assert.Equal(t, []string{"in.(1,2)"}, req.query["id"])
	assert.Equal(t, []string{"is.null"}, req.query["last_seen"])
	assert.Equal(t, []string{"(first_name.ilike.*ada*,last_name.ilike.*ada*)"}, req.query["or"])
	assert.NotContains(t, req.query, "q")
	assert.Equal(t, []string{"last_seen.desc,id.asc"}, req.query["order"])
	assert.Equal(t, "25-49", req.header.Get("Range"))
	assert.Equal(t, "items", req.header.Get("Range-Unit"))
	assert.Equal(t, "count=exact", req.header.Get("Prefer"))
	assert.Equal(t, "anon-key", req.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.header.Get("Authorization"))
}

func TestList_NoPagingNoCount(t *testing.T) {
	f := &fakeServer{body: `[]`}
	c := newTestClient(t, f)

	res, err := c.List(context.Background(), "tags", ListQuery{})
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	assert.Equal(t, -1, res.Total)
	req := f.last(t)
	assert.Empty(t, req.header.Get("Range"))
	assert.Empty(t, req.header.Get("Prefer"))
}

func TestGet(t *testing.T) {
	f := &fakeServer{body: `[{"id": 7, "name": "Acme"}]`}
	c := newTestClient(t, f, func(o *Options) { o.Schema = "crm" })

	rec, err := c.Get(context.Background(), "organizations", 7)
	require.NoError(t, err)

	assert.Equal(t, "Acme", rec["name"])
	req := f.last(t)
	assert.Equal(t, []string{"eq.7"}, req.query["id"])
	assert.Equal(t, "crm", req.header.Get("Accept-Profile"))
}

func TestGet_NotFound(t *testing.T) {
	c := newTestClient(t, &fakeServer{body: `[]`})

	_, err := c.Get(context.Background(), "organizations", 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWrites(t *testing.T) {
	f := &fakeServer{status: http.StatusCreated, body: `[{"id": 9, "name": "New"}]`}
	c := newTestClient(t, f, func(o *Options) { o.Schema = "crm" })
	ctx := context.Background()

	rec, err := c.Insert(ctx, "tags", map[string]any{"name": "New"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9"), rec["id"])
	req := f.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "return=representation", req.header.Get("Prefer"))
	assert.Equal(t, "crm", req.header.Get("Content-Profile"))
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"New"}`, string(req.body))

	_, err = c.Update(ctx, "tags", 9, map[string]any{"color": "red"})
	require.NoError(t, err)
	req = f.last(t)
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, []string{"eq.9"}, req.query["id"])

	_, err = c.Delete(ctx, "tags", "9")
	require.NoError(t, err)
	req = f.last(t)
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, []string{"eq.9"}, req.query["id"])
	assert.Empty(t, req.body)
}

func TestCall(t *testing.T) {
	f := &fakeServer{body: `{"data": {"id": 42}}`}
	c := newTestClient(t, f)

	raw, err := c.Call(context.Background(), "sync_opportunity_with_products", map[string]any{
		"opportunity_data": map[string]any{"id": 42},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"id": 42}}`, string(raw))
	req := f.last(t)
	assert.Equal(t, "/rest/v1/rpc/sync_opportunity_with_products", req.path)
	assert.JSONEq(t, `{"opportunity_data": {"id": 42}}`, string(req.body))
}

func TestErrorResponses(t *testing.T) {
	f := &fakeServer{
		status: http.StatusBadRequest,
		body:   `{"code":"P0001","message":"{\"errors\":{\"quantity\":\"must be positive\"}}","details":null,"hint":null}`,
	}
	c := newTestClient(t, f)

	_, err := c.Call(context.Background(), "sync_opportunity_with_products", nil)
	require.Error(t, err)

	pe, ok := postgrest.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, "P0001", pe.Code)
	require.True(t, pe.Structured())
	assert.Equal(t, map[string]any{"quantity": "must be positive"}, pe.Payload["errors"])
	assert.JSONEq(t, `{}`, string(f.last(t).body))
}

func TestErrorResponses_PlainBody(t *testing.T) {
	c := newTestClient(t, &fakeServer{status: http.StatusBadGateway, body: "upstream down"})

	_, err := c.List(context.Background(), "tags", ListQuery{})

	pe, ok := postgrest.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "upstream down", pe.Message)
	assert.False(t, pe.Structured())
}

func TestRateLimit(t *testing.T) {
	f := &fakeServer{body: `[]`}
	c := newTestClient(t, f, func(o *Options) {
		o.RateLimit = 0.001
		o.Burst = 1
	})

	_, err := c.List(context.Background(), "tags", ListQuery{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.List(ctx, "tags", ListQuery{})

	assert.ErrorContains(t, err, "rate limit")
	assert.Len(t, f.requests, 1)
}

func TestParseTotal(t *testing.T) {
	tests := map[string]int{
		"0-24/318": 318,
		"*/0":      0,
		"0-24/*":   -1,
		"":         -1,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseTotal(in), in)
	}
}
