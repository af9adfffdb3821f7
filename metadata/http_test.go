package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/dataset/d1":
			_, _ = w.Write([]byte(`{"total":1,"results":[{"id":"d1","url":"http://ipt/1","title":"One","records":42}]}`))
		case "/v3/dataset/bare":
			_, _ = w.Write([]byte(`{"id":"bare","title":"Bare","records":1}`))
		case "/v3/dataset/empty":
			_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
		case "/v3/dataset/boom":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		case "/v3/dataset/garbage":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPLookup(t *testing.T) {
	srv, _ := newAPI(t)
	l := NewHTTPLookup(srv.URL+"/v3/", WithRateLimit(0, 0), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	d, ok, err := l.Lookup(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Dataset{ID: "d1", URL: "http://ipt/1", Title: "One", RecordCount: 42}, d)

	d, ok, err = l.Lookup(ctx, "bare")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bare", d.Title)

	for _, id := range []string{"empty", "unknown"} {
		_, ok, err = l.Lookup(ctx, id)
		require.NoError(t, err, id)
		assert.False(t, ok, id)
	}

	_, _, err = l.Lookup(ctx, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, _, err = l.Lookup(ctx, "garbage")
	assert.Error(t, err)
}

func TestHTTPLookupRateLimit(t *testing.T) {
	srv, hits := newAPI(t)
	l := NewHTTPLookup(srv.URL+"/v3", WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, _, err := l.Lookup(context.Background(), "d1")
		require.NoError(t, err)
	}
	// Burst 1 at 20/s: four waits of 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(5), hits.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := l.Lookup(ctx, "d1")
	assert.Error(t, err)
}

func TestHTTPLookupCached(t *testing.T) {
	srv, hits := newAPI(t)
	l := NewCached(NewHTTPLookup(srv.URL+"/v3", WithRateLimit(0, 0)))

	for i := 0; i < 3; i++ {
		_, ok, err := l.Lookup(context.Background(), "d1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), hits.Load())
}
