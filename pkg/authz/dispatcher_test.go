package authz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NAMEAMITSONI/authopsy/internal/config"
	"github.com/NAMEAMITSONI/authopsy/internal/httpclient"
	"github.com/NAMEAMITSONI/authopsy/internal/logger"
)

func testClient(t *testing.T) *http.Client {
	t.Helper()
	return httpclient.NewClient(httpclient.DefaultConfig())
}

func simpleRequest(url string, role Role) ResolvedRequest {
	return ResolvedRequest{
		Method:  "GET",
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
		Role:    role,
	}
}

func TestDispatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	}))
	defer srv.Close()

	d := NewDispatcher(testClient(t), nil, 4, 5*time.Second)

	var reqs []ResolvedRequest
	for i := 0; i < 10; i++ {
		reqs = append(reqs, simpleRequest(fmt.Sprintf("%s/item/%d", srv.URL, i), RoleUser))
	}

	snaps, err := d.Dispatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, snaps, 10)
	for i, snap := range snaps {
		require.True(t, snap.OK())
		assert.Equal(t, 200, snap.Status)
		assert.Contains(t, string(snap.Body), fmt.Sprintf("/item/%d", i))
	}
}

func TestDispatchConcurrencyBound(t *testing.T) {
	const limit = 3

	var inflight, peak int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inflight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(testClient(t), nil, limit, 5*time.Second)

	var reqs []ResolvedRequest
	for i := 0; i < 20; i++ {
		reqs = append(reqs, simpleRequest(srv.URL, RoleUser))
	}

	snaps, err := d.Dispatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, snaps, 20)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit),
		"in-flight requests must never exceed the admission limit")
}

func TestDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	d := NewDispatcher(testClient(t), nil, 2, 50*time.Millisecond)

	snaps, err := d.Dispatch(context.Background(), []ResolvedRequest{
		simpleRequest(srv.URL, RoleAdmin),
	})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].OK())
	assert.Equal(t, "timeout", snaps[0].Err)
}

func TestDispatchPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(testClient(t), nil, 2, time.Second)

	snaps, err := d.Dispatch(context.Background(), []ResolvedRequest{
		simpleRequest(srv.URL, RoleAdmin),
		simpleRequest("http://127.0.0.1:1", RoleUser), // connection refused
		simpleRequest(srv.URL, RoleAnon),
	})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, snaps[0].OK())
	assert.False(t, snaps[1].OK())
	assert.True(t, snaps[2].OK(), "one failed request must not poison the batch")
}

func TestDispatchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(testClient(t), nil, 1, time.Second)
	snaps, err := d.Dispatch(ctx, []ResolvedRequest{
		simpleRequest(srv.URL, RoleAdmin),
		simpleRequest(srv.URL, RoleUser),
	})
	require.Error(t, err)
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.Equal(t, "cancelled", snap.Err)
	}
}

func TestDispatchCancelLetsInFlightFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	d := NewDispatcher(testClient(t), nil, 1, 5*time.Second)
	snaps, err := d.Dispatch(ctx, []ResolvedRequest{
		simpleRequest(srv.URL, RoleAdmin),
		simpleRequest(srv.URL, RoleUser),
	})
	require.Error(t, err)
	require.Len(t, snaps, 2)

	// The admitted request outlives the cancellation; only the one still
	// waiting for a slot is dropped.
	assert.True(t, snaps[0].OK(), "in-flight request must run to completion")
	assert.Equal(t, 200, snaps[0].Status)
	assert.Equal(t, "cancelled", snaps[1].Err)
}

func TestDispatchWithLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	d := NewDispatcher(testClient(t), nil, 1, time.Second)
	d.Log = l.WithComponent("dispatcher")

	snaps, err := d.Dispatch(context.Background(), []ResolvedRequest{
		simpleRequest(srv.URL, RoleUser),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, snaps[0].Status)
}

func TestSnapshotBodyHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stable":"body"}`)
	}))
	defer srv.Close()

	d := NewDispatcher(testClient(t), nil, 2, time.Second)
	snaps, err := d.Dispatch(context.Background(), []ResolvedRequest{
		simpleRequest(srv.URL, RoleAdmin),
		simpleRequest(srv.URL, RoleUser),
	})
	require.NoError(t, err)
	assert.NotZero(t, snaps[0].BodyHash)
	assert.Equal(t, snaps[0].BodyHash, snaps[1].BodyHash,
		"identical bodies must fingerprint identically")
}
