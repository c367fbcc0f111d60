package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/hashicorp/go-retryablehttp"
)

// Opts is the set of options for a new HTTP client.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	RetryMax        int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
}

func (o *Opts) defaults() {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryWaitMin <= 0 {
		o.RetryWaitMin = 200 * time.Millisecond
	}
	if o.RetryWaitMax <= 0 {
		o.RetryWaitMax = 2 * time.Second
	}
}

// failoverTransport sends every request to the first healthy endpoint, rewriting the request URL.
// It implements a circuit-breaker per endpoint and a token-bucket shared by all of them.
// Retries against a single endpoint are left to the wrapped retryablehttp transport.
type failoverTransport struct {
	endpoints []*url.URL
	next      http.RoundTripper

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// NewHTTPWithOpts creates an *http.Client failing over across o.Endpoints.
func NewHTTPWithOpts(o Opts) (*http.Client, error) {
	o.defaults()

	endpoints := make([]*url.URL, 0, len(o.Endpoints))
	for _, raw := range utils.Dedup(o.Endpoints) {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid rpc endpoint %q", raw)
		}
		endpoints = append(endpoints, u)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	retrying := retryablehttp.NewClient()
	retrying.Logger = nil
	retrying.HTTPClient.Timeout = o.Timeout
	retrying.RetryMax = o.RetryMax
	retrying.RetryWaitMin = o.RetryWaitMin
	retrying.RetryWaitMax = o.RetryWaitMax
	// hand 5xx back to the breaker instead of failing the request
	retrying.ErrorHandler = retryablehttp.PassthroughErrorHandler

	t := &failoverTransport{
		endpoints:        endpoints,
		next:             &retryablehttp.RoundTripper{Client: retrying},
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	t.tokens = t.maxTokens
	t.lastRefill.Store(time.Now())

	return &http.Client{Transport: t}, nil
}

// refill refills the token-bucket with new tokens if necessary.
func (t *failoverTransport) refill() {
	last := t.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= t.refillEvery {
		if atomic.LoadInt64(&t.tokens) < t.maxTokens {
			atomic.AddInt64(&t.tokens, 1)
		}
		t.lastRefill.Store(now)
	}
}

// acquire takes a token, waiting for a refill until ctx is done.
func (t *failoverTransport) acquire(ctx context.Context) error {
	for {
		t.refill()
		if atomic.AddInt64(&t.tokens, -1) >= 0 {
			return nil
		}
		atomic.AddInt64(&t.tokens, 1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.refillEvery / 2):
		}
	}
}

// isOpen returns true while the endpoint's breaker is OPEN.
func (t *failoverTransport) isOpen(ep string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(t.opened, ep)
		t.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure opens the breaker once the failure count reaches the threshold.
func (t *failoverTransport) noteFailure(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep]++
	if t.failures[ep] >= t.breakerThreshold {
		t.opened[ep] = time.Now().Add(t.breakerCooldown)
	}
}

func (t *failoverTransport) noteSuccess(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep] = 0
}

// RoundTrip tries each endpoint in order, skipping open breakers, until one answers below 500.
func (t *failoverTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
	}

	var lastErr error
	for _, ep := range t.endpoints {
		key := ep.String()
		if t.isOpen(key) {
			continue
		}
		if err := t.acquire(req.Context()); err != nil {
			return nil, err
		}

		attempt := rewrite(req, ep, body)

		resp, err := t.next.RoundTrip(attempt)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			t.noteFailure(key)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d from %s", resp.StatusCode, ep.Host)
			t.noteFailure(key)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		t.noteSuccess(key)
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all %d rpc endpoints are unavailable", len(t.endpoints))
	}
	return nil, lastErr
}

// rewrite clones req onto ep with its own copy of body.
func rewrite(req *http.Request, ep *url.URL, body []byte) *http.Request {
	out := req.Clone(req.Context())
	u := *ep
	out.URL = &u
	out.Host = ep.Host
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return out
}
