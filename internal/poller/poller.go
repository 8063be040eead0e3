// Package poller tracks a named item's convergence out of a transitional
// state. It never performs network I/O of its own: each tick only observes
// the shared cache and requests invalidation so the query orchestrator's
// next fetch cycle picks up fresh status. The poller only observes; the
// orchestrator owns all fetching.
package poller

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mcp-console/internal/query"
)

// CacheReader is the poller's read/invalidate view of the shared cache
type CacheReader interface {
	Snapshot(key query.Key) (interface{}, bool)
	Invalidate(keys ...query.Key)
}

// DonePredicate reports whether the observed value has reached a terminal
// state. A true result tears the registration down.
type DonePredicate func(value interface{}, found bool) bool

// Config holds tracker timing configuration
type Config struct {
	// Interval between observation ticks
	Interval time.Duration
	// MaxDuration force-stops tracking regardless of outcome
	MaxDuration time.Duration
}

// DefaultConfig returns the tracker timing used by the console
func DefaultConfig() Config {
	return Config{
		Interval:    3 * time.Second,
		MaxDuration: 90 * time.Second,
	}
}

// registration is one live timer pair tracking a single key
type registration struct {
	key       string
	resource  query.Key
	done      DonePredicate
	stop      chan struct{}
	stopOnce  sync.Once
	startedAt time.Time
}

func (r *registration) teardown() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Tracker schedules bounded-lifetime observation of items in transitional
// states. At most one live registration exists per key.
type Tracker struct {
	mu     sync.Mutex
	regs   map[string]*registration
	cache  CacheReader
	config Config
	logger *logrus.Entry
	wg     sync.WaitGroup
}

// NewTracker creates a status tracker over the shared cache
func NewTracker(cache CacheReader, config Config, logger *logrus.Logger) *Tracker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	return &Tracker{
		regs:   make(map[string]*registration),
		cache:  cache,
		config: config,
		logger: logger.WithField("component", "poller"),
	}
}

// Start begins tracking key, replacing any prior registration for it. The
// resource key addresses the cache entry to observe; done decides when
// tracking may stop.
func (t *Tracker) Start(key string, resource query.Key, done DonePredicate) {
	t.mu.Lock()
	if prior, ok := t.regs[key]; ok {
		prior.teardown()
	}

	reg := &registration{
		key:       key,
		resource:  resource,
		done:      done,
		stop:      make(chan struct{}),
		startedAt: time.Now(),
	}
	t.regs[key] = reg
	t.mu.Unlock()

	t.logger.WithField("key", key).Debug("Status tracking started")

	t.wg.Add(1)
	go t.run(reg)
}

// Stop idempotently tears down the registration for key; stopping an
// unregistered key is safe
func (t *Tracker) Stop(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if reg, ok := t.regs[key]; ok {
		reg.teardown()
		delete(t.regs, key)
	}
}

// StopAll stops every live registration. Called unconditionally when the
// owning scope is torn down so no timer outlives its owner.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	for key, reg := range t.regs {
		reg.teardown()
		delete(t.regs, key)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

// Active returns the number of live registrations
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.regs)
}

func (t *Tracker) run(reg *registration) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	deadline := time.NewTimer(t.config.MaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-reg.stop:
			return
		case <-deadline.C:
			t.logger.WithField("key", reg.key).Warn("Status tracking hit max duration")
			t.remove(reg)
			return
		case <-ticker.C:
			if t.tick(reg) {
				t.remove(reg)
				return
			}
		}
	}
}

// tick observes the cached status once; a true result ends tracking. A
// panic inside the predicate is logged and treated as a stop condition so
// a single bad tick cannot leave a runaway timer.
func (t *Tracker) tick(reg *registration) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.WithFields(logrus.Fields{
				"key":   reg.key,
				"panic": r,
			}).Error("Status tick panicked, stopping tracking")
			stopped = true
		}
	}()

	value, found := t.cache.Snapshot(reg.resource)
	if reg.done(value, found) {
		t.logger.WithField("key", reg.key).Debug("Status tracking finished")
		return true
	}

	// Not converged yet: request fresh observation from the next fetch cycle
	t.cache.Invalidate(reg.resource)
	return false
}

// remove unregisters reg if it is still the live registration for its key
func (t *Tracker) remove(reg *registration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.regs[reg.key]; ok && current == reg {
		delete(t.regs, reg.key)
	}
}
