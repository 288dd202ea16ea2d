// Package media resolves media requests into stored objects. The Coordinator
// makes sure each resource is fetched at most once at a time and fans the
// outcome out to every request waiting on it.
package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/expiry"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/logger"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// Options control a Coordinator.
type Options struct {
	// AllowRedirects lets the transport follow redirects; otherwise a 3xx
	// response fails the request.
	AllowRedirects bool
	// BasePriority is the priority of ordinary crawl requests. Media fetches
	// run one above it.
	BasePriority int
	// Retention is how long a resolved outcome is handed out to later
	// requests without touching the store again. Zero disables retention.
	Retention time.Duration
	Expiry    expiry.Policy
	Now       func() time.Time
}

// Stats are cumulative counters.
type Stats struct {
	Fetches   int64 // fetches issued
	Uptodate  int64 // resolutions served from a fresh stored copy
	CacheHits int64 // requests served from a retained outcome
	Coalesced int64 // requests that joined an in-flight resolution
	Failures  int64 // failed resolutions
}

type pending struct {
	url     string
	waiters []func(Outcome)
}

// Coordinator is the pending resource table. All methods are safe for
// concurrent use.
type Coordinator struct {
	store  storage.Store
	client fetch.Client
	proc   Processor
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[fingerprint.Key]*pending
	done     *cache.Cache
	abortErr error

	fetches, uptodate, cacheHits, coalesced, failures atomic.Int64
}

// NewCoordinator creates a Coordinator persisting through store and fetching
// through client.
func NewCoordinator(store storage.Store, client fetch.Client, proc Processor, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:   store,
		client:  client,
		proc:    proc,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[fingerprint.Key]*pending),
	}
	if opts.Retention > 0 {
		c.done = cache.New(opts.Retention, 2*opts.Retention)
	}
	return c
}

// Submit registers req and arranges for deliver to be called exactly once
// with its Outcome. It never blocks on the fetch; deliver may run on the
// calling goroutine when the outcome is already known.
//
// ctx only gates the submission itself. Resolutions are shared between
// requests and live until they finish or Abort is called.
func (c *Coordinator) Submit(ctx context.Context, req Request, deliver func(Outcome)) {
	if err := ctx.Err(); err != nil {
		deliver(Failure(req.URL, fmt.Errorf("%w: %w", errors.ErrAborted, err)))
		return
	}
	key := fingerprint.Of(req.URL)

	c.mu.Lock()
	if c.abortErr != nil {
		err := c.abortErr
		c.mu.Unlock()
		deliver(Failure(req.URL, err))
		return
	}
	if c.done != nil {
		if v, ok := c.done.Get(key.String()); ok {
			c.mu.Unlock()
			c.cacheHits.Add(1)
			deliver(v.(Outcome).AsCached())
			return
		}
	}
	if p, ok := c.pending[key]; ok {
		p.waiters = append(p.waiters, deliver)
		c.mu.Unlock()
		c.coalesced.Add(1)
		return
	}
	p := &pending{url: req.URL, waiters: []func(Outcome){deliver}}
	c.pending[key] = p
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(key, p, req)
}

// Abort fails every unresolved request with err and rejects later
// submissions. Fetches still running are canceled and their outcomes dropped.
func (c *Coordinator) Abort(err error) {
	switch {
	case err == nil:
		err = errors.ErrAborted
	case !errors.Is(err, errors.ErrAborted):
		err = fmt.Errorf("%w: %w", errors.ErrAborted, err)
	}

	c.mu.Lock()
	if c.abortErr != nil {
		c.mu.Unlock()
		return
	}
	c.abortErr = err
	drained := c.pending
	c.pending = make(map[fingerprint.Key]*pending)
	c.mu.Unlock()

	c.cancel()
	for _, p := range drained {
		c.failures.Add(1)
		for _, deliver := range p.waiters {
			deliver(Failure(p.url, err))
		}
	}
	logger.Warn("Media coordinator aborted", logger.Fields{"pending": len(drained), "reason": err.Error()})
}

// Wait blocks until every started resolution has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Pending returns the number of resources currently being resolved.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Fetches:   c.fetches.Load(),
		Uptodate:  c.uptodate.Load(),
		CacheHits: c.cacheHits.Load(),
		Coalesced: c.coalesced.Load(),
		Failures:  c.failures.Load(),
	}
}

func (c *Coordinator) run(key fingerprint.Key, p *pending, req Request) {
	defer c.wg.Done()

	var out Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic while resolving media", logger.Fields{"url": req.URL, "panic": fmt.Sprint(r)})
				out = Failure(req.URL, errors.Wrapf(errors.ErrFetchFailure, "panic: %v", r))
			}
		}()
		out = c.resolve(c.ctx, req)
	}()

	c.finish(key, p, out)
}

// finish moves key to DONE and delivers out. The first waiter is the request
// that triggered the resolution.
func (c *Coordinator) finish(key fingerprint.Key, p *pending, out Outcome) {
	c.mu.Lock()
	if c.pending[key] != p {
		c.mu.Unlock()
		logger.Debug("Dropping outcome of aborted resolution", logger.Fields{"url": p.url})
		return
	}
	delete(c.pending, key)
	if c.done != nil {
		c.done.Set(key.String(), out, cache.DefaultExpiration)
	}
	waiters := p.waiters
	p.waiters = nil
	c.mu.Unlock()

	c.log(out, len(waiters))
	for i, deliver := range waiters {
		if i == 0 {
			deliver(out)
			continue
		}
		deliver(out.AsCached())
	}
}

func (c *Coordinator) resolve(ctx context.Context, req Request) Outcome {
	path, err := c.proc.Path(ctx, req)
	if err != nil {
		return Failure(req.URL, err)
	}

	if out, ok := c.stored(ctx, req, path); ok {
		c.uptodate.Add(1)
		return out
	}

	c.fetches.Add(1)
	resp, err := c.client.Do(ctx, &fetch.Request{
		URL:             req.URL,
		Header:          req.Header,
		Priority:        c.opts.BasePriority + 1,
		FollowRedirects: c.opts.AllowRedirects,
	})
	if err != nil {
		return Failure(req.URL, fetchError(err))
	}
	return c.proc.Process(ctx, req, path, resp)
}

// stored returns an uptodate outcome when path holds a fresh copy. Stat
// errors other than not found are logged and treated as a miss.
func (c *Coordinator) stored(ctx context.Context, req Request, path string) (Outcome, bool) {
	st, err := c.store.Stat(ctx, path)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("Unable to check stored media", logger.Fields{"path": path, "error": err.Error()})
		}
		return Outcome{}, false
	}
	if !c.opts.Expiry.Fresh(st.ModTime, c.opts.Now()) {
		return Outcome{}, false
	}
	return Outcome{
		URL:      req.URL,
		Path:     path,
		Checksum: st.Checksum,
		Status:   StatusUptodate,
	}, true
}

func (c *Coordinator) log(out Outcome, waiters int) {
	if out.Err != nil {
		c.failures.Add(1)
		logger.Warn("Media fetch failed", logger.Fields{
			"url":     out.URL,
			"reason":  Reason(out.Err),
			"error":   out.Err.Error(),
			"waiters": waiters,
		})
		return
	}
	logger.Debug("Media resolved", logger.Fields{
		"url":     out.URL,
		"status":  string(out.Status),
		"path":    out.Path,
		"waiters": waiters,
	})
}
