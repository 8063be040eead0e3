package poller

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"mcp-console/internal/query"
)

type fakeCache struct {
	value       atomic.Value
	invalidated int32
}

func (c *fakeCache) Snapshot(key query.Key) (interface{}, bool) {
	v := c.value.Load()
	if v == nil {
		return nil, false
	}
	return v, true
}

func (c *fakeCache) Invalidate(keys ...query.Key) {
	atomic.AddInt32(&c.invalidated, int32(len(keys)))
}

func newTestTracker(cache *fakeCache, interval, max time.Duration) *Tracker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewTracker(cache, Config{Interval: interval, MaxDuration: max}, logger)
}

func TestTracker_StopsWhenPredicateSatisfied(t *testing.T) {
	cache := &fakeCache{}
	cache.value.Store("starting")
	tracker := newTestTracker(cache, 5*time.Millisecond, time.Second)
	defer tracker.StopAll()

	tracker.Start("echo", query.NewKey("servers", "echo", "status"), func(value interface{}, found bool) bool {
		return found && value == "running"
	})

	// Not converged: ticks keep invalidating
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&cache.invalidated) >= 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, tracker.Active())

	cache.value.Store("running")

	assert.Eventually(t, func() bool {
		return tracker.Active() == 0
	}, time.Second, time.Millisecond)
}

func TestTracker_StopsAtMaxDuration(t *testing.T) {
	cache := &fakeCache{}
	cache.value.Store("starting")
	tracker := newTestTracker(cache, 5*time.Millisecond, 30*time.Millisecond)
	defer tracker.StopAll()

	tracker.Start("echo", query.NewKey("servers", "echo", "status"), func(value interface{}, found bool) bool {
		return false // never converges
	})

	assert.Eventually(t, func() bool {
		return tracker.Active() == 0
	}, time.Second, time.Millisecond)

	// No further invalidations after the deadline fired
	settled := atomic.LoadInt32(&cache.invalidated)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&cache.invalidated))
}

func TestTracker_StartReplacesExistingRegistration(t *testing.T) {
	cache := &fakeCache{}
	cache.value.Store("starting")
	tracker := newTestTracker(cache, 5*time.Millisecond, time.Second)
	defer tracker.StopAll()

	never := func(value interface{}, found bool) bool { return false }
	key := query.NewKey("servers", "echo", "status")

	tracker.Start("echo", key, never)
	tracker.Start("echo", key, never)

	assert.Equal(t, 1, tracker.Active())

	time.Sleep(55 * time.Millisecond)
	tracker.Stop("echo")
	settled := atomic.LoadInt32(&cache.invalidated)

	// One loop's worth of ticks, not two
	assert.LessOrEqual(t, settled, int32(13))
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	cache := &fakeCache{}
	tracker := newTestTracker(cache, 5*time.Millisecond, time.Second)

	tracker.Stop("never-started")

	tracker.Start("echo", query.NewKey("servers", "echo", "status"), func(value interface{}, found bool) bool {
		return false
	})
	tracker.Stop("echo")
	tracker.Stop("echo")

	assert.Equal(t, 0, tracker.Active())
	tracker.StopAll()
}

func TestTracker_StopAllTearsDownEverything(t *testing.T) {
	cache := &fakeCache{}
	cache.value.Store("starting")
	tracker := newTestTracker(cache, 5*time.Millisecond, time.Second)

	never := func(value interface{}, found bool) bool { return false }
	tracker.Start("a", query.NewKey("servers", "a", "status"), never)
	tracker.Start("b", query.NewKey("servers", "b", "status"), never)
	tracker.Start("c", query.NewKey("servers", "c", "status"), never)

	tracker.StopAll()
	assert.Equal(t, 0, tracker.Active())

	// No ticks survive teardown
	settled := atomic.LoadInt32(&cache.invalidated)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&cache.invalidated))
}

func TestTracker_PanickingPredicateStopsTracking(t *testing.T) {
	cache := &fakeCache{}
	cache.value.Store("starting")
	tracker := newTestTracker(cache, 5*time.Millisecond, time.Second)
	defer tracker.StopAll()

	tracker.Start("echo", query.NewKey("servers", "echo", "status"), func(value interface{}, found bool) bool {
		panic("bad predicate")
	})

	assert.Eventually(t, func() bool {
		return tracker.Active() == 0
	}, time.Second, time.Millisecond)
}
