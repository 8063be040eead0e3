package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned when a read is gated on a session that is
// not currently authenticated
var ErrNotAuthenticated = errors.New("not authenticated")

// FetchFunc loads a resource's value from the remote service
type FetchFunc func(ctx context.Context) (interface{}, error)

// Resource declares one remote resource: its cache key, how to fetch it,
// how long its value stays fresh, and how often to poll it in the
// background. NoAuth marks operational signals that stay readable before
// login (liveness, health, metrics).
type Resource struct {
	Key          Key
	Fetch        FetchFunc
	StaleTime    time.Duration
	PollInterval time.Duration
	NoAuth       bool
}

// SessionReader is the read-only view of the authentication state machine
type SessionReader interface {
	Authenticated() bool
}

// VisibilityFunc reports whether the console surface is currently in view.
// While hidden, background polling is fully suspended.
type VisibilityFunc func() bool

// AlwaysVisible is the visibility source for one-shot CLI use
func AlwaysVisible() bool { return true }

// Orchestrator wraps reads with caching, staleness, deduplication, and a
// visibility-aware polling schedule. It is the only component that fetches;
// the per-item status poller only observes the cache.
type Orchestrator struct {
	cache   *Cache
	session SessionReader
	visible VisibilityFunc
	group   singleflight.Group
	logger  *logrus.Entry

	mu      sync.Mutex
	pollers map[string]chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewOrchestrator creates a query orchestrator over the shared cache
func NewOrchestrator(cache *Cache, session SessionReader, visible VisibilityFunc, logger *logrus.Logger) *Orchestrator {
	if visible == nil {
		visible = AlwaysVisible
	}
	return &Orchestrator{
		cache:   cache,
		session: session,
		visible: visible,
		logger:  logger.WithField("component", "query"),
		pollers: make(map[string]chan struct{}),
	}
}

// Cache returns the shared cache
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// Read returns the resource's value, applying stale-while-revalidate
// semantics: a fresh cached value is returned as-is; a stale one is returned
// immediately while a background refetch runs; a missing one blocks on a
// deduplicated fetch.
func (o *Orchestrator) Read(ctx context.Context, r Resource) (interface{}, error) {
	if !r.NoAuth && !o.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	entry, ok := o.cache.Lookup(r.Key)
	if ok && entry.Status == StatusSuccess {
		if entry.Stale(time.Now()) {
			o.revalidate(r)
		}
		return entry.Value, nil
	}

	return o.fetch(ctx, r)
}

// Refetch forces a fresh fetch for the resource, bypassing staleness but
// still collapsing into any identical in-flight call
func (o *Orchestrator) Refetch(ctx context.Context, r Resource) (interface{}, error) {
	if !r.NoAuth && !o.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return o.fetch(ctx, r)
}

// fetch performs a deduplicated network fetch and records the outcome.
// Concurrent callers for the same key share one network call and observe
// the same outcome.
func (o *Orchestrator) fetch(ctx context.Context, r Resource) (interface{}, error) {
	o.cache.markLoading(r.Key, r.StaleTime)

	value, err, _ := o.group.Do(r.Key.String(), func() (interface{}, error) {
		value, err := r.Fetch(ctx)
		o.cache.store(r.Key, value, err, r.StaleTime)
		return value, err
	})
	return value, err
}

// revalidate refreshes a stale entry in the background without blocking the
// caller that observed the stale value
func (o *Orchestrator) revalidate(r Resource) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.fetch(context.Background(), r); err != nil {
			o.logger.WithError(err).WithField("key", r.Key.String()).Debug("Background revalidation failed")
		}
	}()
}

// StartPolling arms a background poll loop for the resource. At most one
// loop runs per key; starting again replaces the previous loop. Ticks are
// skipped entirely while the console surface is hidden and while the
// resource's auth gate is closed.
func (o *Orchestrator) StartPolling(r Resource) {
	if r.PollInterval <= 0 {
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if stop, ok := o.pollers[r.Key.String()]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	o.pollers[r.Key.String()] = stop
	o.mu.Unlock()

	o.wg.Add(1)
	go o.pollLoop(r, stop)
}

// StopPolling tears down the poll loop for key, if any
func (o *Orchestrator) StopPolling(key Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stop, ok := o.pollers[key.String()]; ok {
		close(stop)
		delete(o.pollers, key.String())
	}
}

// Close stops every poll loop and waits for background work to finish
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	for _, stop := range o.pollers {
		close(stop)
	}
	o.pollers = make(map[string]chan struct{})
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Orchestrator) pollLoop(r Resource, stop chan struct{}) {
	defer o.wg.Done()

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	o.logger.WithFields(logrus.Fields{
		"key":      r.Key.String(),
		"interval": r.PollInterval.String(),
	}).Debug("Polling started")

	for {
		select {
		case <-stop:
			o.logger.WithField("key", r.Key.String()).Debug("Polling stopped")
			return
		case <-ticker.C:
			if !o.visible() {
				continue
			}
			if !r.NoAuth && !o.session.Authenticated() {
				continue
			}
			if _, err := o.fetch(context.Background(), r); err != nil {
				o.logger.WithError(err).WithField("key", r.Key.String()).Debug("Poll fetch failed")
			}
		}
	}
}
