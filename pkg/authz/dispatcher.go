package authz

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/twmb/murmur3"
	"golang.org/x/sync/semaphore"

	"github.com/NAMEAMITSONI/authopsy/internal/httpclient"
	"github.com/NAMEAMITSONI/authopsy/internal/logger"
	"github.com/NAMEAMITSONI/authopsy/internal/ratelimit"
)

// Snapshot captures everything the comparator needs from one response.
// A failed request is a snapshot too, with Err set and the rest zeroed.
type Snapshot struct {
	Status      int
	Body        []byte
	Size        int
	ContentType string
	Elapsed     time.Duration
	BodyHash    uint64
	Err         string

	Role Role
}

// OK reports whether the request completed at the transport level.
func (s Snapshot) OK() bool {
	return s.Err == ""
}

// maxBodyBytes caps how much of a response body gets buffered for
// comparison. Larger bodies are truncated; Size counts only the buffered
// bytes.
const maxBodyBytes = 4 << 20

// Dispatcher executes resolved requests with bounded concurrency. In-flight
// admission is controlled by a weighted semaphore; an optional rate limiter
// paces admission further. Results come back in input order.
type Dispatcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	sem     *semaphore.Weighted
	timeout time.Duration

	// Log, when set, records each completed request at debug level.
	Log *logger.Logger
}

// NewDispatcher builds a dispatcher. concurrency must be >= 1; limiter may
// be nil to disable pacing.
func NewDispatcher(client *http.Client, limiter *ratelimit.Limiter, concurrency int, timeout time.Duration) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client:  client,
		limiter: limiter,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
	}
}

// Dispatch executes all requests and returns one snapshot per request, in
// the same order. Individual failures are recorded in their snapshot. On
// parent cancellation, requests already in flight run to completion, the
// rest are marked cancelled, and the gathered snapshots are returned
// alongside the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []ResolvedRequest) ([]Snapshot, error) {
	snaps := make([]Snapshot, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(reqs); j++ {
				snaps[j] = Snapshot{Role: reqs[j].Role, Err: "cancelled"}
			}
			wg.Wait()
			return snaps, err
		}
		wg.Add(1)
		go func(i int, req ResolvedRequest) {
			defer wg.Done()
			defer d.sem.Release(1)
			snaps[i] = d.execute(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return snaps, nil
}

// Execute runs a single request; used by the fuzzer for baselines.
func (d *Dispatcher) Execute(ctx context.Context, req ResolvedRequest) Snapshot {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return Snapshot{Role: req.Role, Err: "cancelled"}
	}
	defer d.sem.Release(1)
	return d.execute(ctx, req)
}

func (d *Dispatcher) execute(ctx context.Context, req ResolvedRequest) Snapshot {
	snap := Snapshot{Role: req.Role}

	// Cancellation only gates admission: once a request holds a semaphore
	// slot it runs to completion or its own deadline.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(reqCtx); err != nil {
			snap.Err = errLabel(reqCtx, err)
			return snap
		}
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		snap.Err = err.Error()
		return snap
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := httpclient.DoWithContext(reqCtx, d.client, httpReq)
	snap.Elapsed = time.Since(start)
	if err != nil {
		snap.Err = errLabel(reqCtx, err)
		return snap
	}
	defer httpclient.CloseBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		snap.Err = errLabel(reqCtx, err)
		return snap
	}

	snap.Status = resp.StatusCode
	snap.Body = body
	snap.Size = len(body)
	snap.ContentType = resp.Header.Get("Content-Type")
	snap.BodyHash = murmur3.Sum64(body)

	if d.Log != nil {
		d.Log.LogHTTPRequest(req.Method, req.URL, resp.StatusCode, snap.Elapsed,
			"role", string(req.Role))
	}
	return snap
}

// errLabel folds transport errors into the stable labels the classifier
// keys on.
func errLabel(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
