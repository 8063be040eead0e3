package query

import (
	"strings"
	"sync"
	"time"
)

// Key is a structured, hierarchical cache key, e.g. {"servers", "echo", "status"}
type Key []string

// NewKey builds a key from its parts
func NewKey(parts ...string) Key {
	return Key(parts)
}

// String renders the key in its canonical form
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Status is the fetch state of a cache entry
type Status int

const (
	// StatusIdle means no fetch has completed yet
	StatusIdle Status = iota
	// StatusLoading means a first fetch is in flight
	StatusLoading
	// StatusSuccess means the entry holds a fetched value
	StatusSuccess
	// StatusError means the last fetch failed
	StatusError
)

// String returns the lowercase name of the status
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is the last-known value and metadata for one resource
type Entry struct {
	Key       Key
	Value     interface{}
	Status    Status
	Err       error
	FetchedAt time.Time
	StaleTime time.Duration
}

// Stale reports whether the entry's value is older than its staleness
// threshold. Stale entries keep serving their value; staleness only makes
// them eligible for a background refetch.
func (e Entry) Stale(now time.Time) bool {
	if e.Status != StatusSuccess {
		return true
	}
	if e.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(e.FetchedAt) > e.StaleTime
}

// Watcher observes cache changes for one key
type Watcher func(key Key)

// Cache is the single shared store of fetched state. Entries are created
// lazily on first read and evicted only by Reset or process restart;
// invalidation marks entries stale without removing their value.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	watchers []Watcher
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
	}
}

// Lookup returns the entry for key, if present
func (c *Cache) Lookup(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key.String()]
	return entry, ok
}

// Snapshot returns the current value for key, if one has been stored
func (c *Cache) Snapshot(key Key) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.String()]
	if !ok || entry.Status == StatusIdle || entry.Status == StatusLoading {
		return nil, false
	}
	return entry.Value, entry.Value != nil
}

// Set writes a value for key directly, preserving the entry's staleness
// threshold. This is the mutation orchestrator's write path for optimistic
// updates; reads go through the query orchestrator.
func (c *Cache) Set(key Key, value interface{}) {
	c.mu.Lock()
	entry := c.entries[key.String()]
	entry.Key = key
	entry.Value = value
	entry.Status = StatusSuccess
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now()
	}
	c.entries[key.String()] = entry
	c.mu.Unlock()

	c.notify(key)
}

// Invalidate marks every given key stale so the next read refetches it.
// Values are kept; an in-flight fetch for the key is superseded, not aborted.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	changed := make([]Key, 0, len(keys))
	for _, key := range keys {
		entry, ok := c.entries[key.String()]
		if !ok {
			continue
		}
		entry.FetchedAt = time.Time{}
		c.entries[key.String()] = entry
		changed = append(changed, key)
	}
	c.mu.Unlock()

	for _, key := range changed {
		c.notify(key)
	}
}

// Reset drops every entry; used on logout
func (c *Cache) Reset() {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.entries))
	for _, entry := range c.entries {
		keys = append(keys, entry.Key)
	}
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	for _, key := range keys {
		c.notify(key)
	}
}

// Entries returns a copy of all current entries
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	return out
}

// Watch registers a callback invoked after any change to a key's entry
func (c *Cache) Watch(w Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, w)
}

// store records a fetch outcome for key
func (c *Cache) store(key Key, value interface{}, fetchErr error, staleTime time.Duration) {
	c.mu.Lock()
	entry := c.entries[key.String()]
	entry.Key = key
	entry.StaleTime = staleTime
	if fetchErr != nil {
		entry.Status = StatusError
		entry.Err = fetchErr
	} else {
		entry.Status = StatusSuccess
		entry.Err = nil
		entry.Value = value
		entry.FetchedAt = time.Now()
	}
	c.entries[key.String()] = entry
	c.mu.Unlock()

	c.notify(key)
}

// markLoading flags a first fetch for key
func (c *Cache) markLoading(key Key, staleTime time.Duration) {
	c.mu.Lock()
	entry, ok := c.entries[key.String()]
	if !ok {
		entry = Entry{Key: key, Status: StatusLoading, StaleTime: staleTime}
		c.entries[key.String()] = entry
	}
	c.mu.Unlock()
}

func (c *Cache) notify(key Key) {
	c.mu.RLock()
	watchers := make([]Watcher, len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.RUnlock()

	for _, w := range watchers {
		w(key)
	}
}
