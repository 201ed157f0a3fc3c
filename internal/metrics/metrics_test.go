package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/store"
)

func TestObserveCompilation(t *testing.T) {
	r := New("")

	r.ObserveCompilation("opportunities", "opportunities_summary")
	r.ObserveCompilation("opportunities", "opportunities_summary")
	r.ObserveCompilation("contacts", "contacts")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Compilations.WithLabelValues("opportunities", "opportunities_summary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Compilations.WithLabelValues("contacts", "contacts")))
}

func TestObserveSync(t *testing.T) {
	r := New("")

	d := reconcile.Diff{
		Creates: []reconcile.Product{{}, {}},
		Updates: []reconcile.Product{{ID: reconcile.IntID(1)}},
		Deletes: []reconcile.ID{reconcile.IntID(2), reconcile.IntID(3), reconcile.IntID(4)},
	}
	r.ObserveSync("sync_opportunity_with_products", store.StatusSucceeded, d)
	r.ObserveSync("sync_opportunity_with_products", store.StatusFailed, reconcile.Diff{})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.SyncAttempts.WithLabelValues("sync_opportunity_with_products", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SyncAttempts.WithLabelValues("sync_opportunity_with_products", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Instructions.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Instructions.WithLabelValues("update")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.Instructions.WithLabelValues("delete")))
}

func TestWatchCache(t *testing.T) {
	r := New("")
	c := cache.New[string](cache.Options{Name: "escape", Max: 1})

	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	c.Set("b", "2")

	r.WatchCache("escape", c.Stats)

	expected := `
# HELP restbridge_cache_lookups_total Total number of cache lookups by result.
# TYPE restbridge_cache_lookups_total counter
restbridge_cache_lookups_total{cache="escape",result="hit"} 2
restbridge_cache_lookups_total{cache="escape",result="miss"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"restbridge_cache_lookups_total"))

	expected = `
# HELP restbridge_cache_evictions_total Total number of entries evicted for capacity.
# TYPE restbridge_cache_evictions_total counter
restbridge_cache_evictions_total{cache="escape"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"restbridge_cache_evictions_total"))
}

func TestCustomNamespace(t *testing.T) {
	r := New("crm")
	r.ObserveCompilation("tasks", "tasks")

	n, err := testutil.GatherAndCount(r.Registry(), "crm_filter_compilations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandler(t *testing.T) {
	r := New("")
	r.ObserveCompilation("tasks", "tasks")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `restbridge_filter_compilations_total{resource="tasks",target="tasks"} 1`)
}

func TestWriteTextfile(t *testing.T) {
	r := New("")
	r.ObserveCompilation("tags", "tags")

	path := filepath.Join(t.TempDir(), "restbridge.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `restbridge_filter_compilations_total{resource="tags",target="tags"} 1`)
}
