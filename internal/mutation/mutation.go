// Package mutation wraps write operations with standardized notification,
// cache invalidation, and optional optimistic update + rollback.
package mutation

import (
	"context"

	"github.com/sirupsen/logrus"

	"mcp-console/internal/client"
	"mcp-console/internal/notify"
	"mcp-console/internal/query"
)

// Optimistic describes a speculative cache write applied before the network
// call resolves. Apply produces the optimistic value from the current one.
// Rollback restores state after a failure; when nil, a failed optimistic
// write stays in the cache until the settlement refetch overwrites it.
type Optimistic struct {
	Key      query.Key
	Apply    func(current interface{}) interface{}
	Rollback func(current, snapshot interface{}) interface{}
}

// Mutation describes one write operation against the remote service
type Mutation struct {
	Name           string
	Execute        func(ctx context.Context) (interface{}, error)
	SuccessMessage string
	ErrorMessage   string
	Invalidates    []query.Key
	OnSuccess      func(result interface{})
	OnError        func(err error)
	Optimistic     *Optimistic
}

// Runner executes mutations against the shared cache
type Runner struct {
	cache    *query.Cache
	notifier notify.Notifier
	logger   *logrus.Entry
}

// NewRunner creates a mutation runner
func NewRunner(cache *query.Cache, notifier notify.Notifier, logger *logrus.Logger) *Runner {
	return &Runner{
		cache:    cache,
		notifier: notifier,
		logger:   logger.WithField("component", "mutation"),
	}
}

// Run executes the mutation. On success it notifies, invalidates the
// declared keys, and calls the success hook; on failure it notifies with
// the classified message and calls the failure hook. Either way any
// optimistic key is invalidated on settlement to reconcile with ground
// truth.
func (r *Runner) Run(ctx context.Context, m Mutation) (interface{}, error) {
	var snapshot interface{}
	var hadSnapshot bool

	if m.Optimistic != nil {
		snapshot, hadSnapshot = r.cache.Snapshot(m.Optimistic.Key)
		r.cache.Set(m.Optimistic.Key, m.Optimistic.Apply(snapshot))
	}

	result, err := m.Execute(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("mutation", m.Name).Warn("Mutation failed")

		if m.Optimistic != nil && m.Optimistic.Rollback != nil {
			current, _ := r.cache.Snapshot(m.Optimistic.Key)
			if hadSnapshot {
				r.cache.Set(m.Optimistic.Key, m.Optimistic.Rollback(current, snapshot))
			} else {
				r.cache.Set(m.Optimistic.Key, m.Optimistic.Rollback(current, nil))
			}
		}

		message := m.ErrorMessage
		if message == "" {
			message = client.Message(err)
		}
		r.notifier.Error(message)

		r.settle(m)

		if m.OnError != nil {
			m.OnError(err)
		}
		return nil, err
	}

	r.logger.WithField("mutation", m.Name).Debug("Mutation succeeded")

	if m.SuccessMessage != "" {
		r.notifier.Success(m.SuccessMessage)
	}

	r.invalidate(m.Invalidates)
	r.settle(m)

	if m.OnSuccess != nil {
		m.OnSuccess(result)
	}
	return result, nil
}

// settle performs the final reconciliation invalidation for the optimistic key
func (r *Runner) settle(m Mutation) {
	if m.Optimistic != nil {
		r.cache.Invalidate(m.Optimistic.Key)
	}
}

func (r *Runner) invalidate(keys []query.Key) {
	if len(keys) > 0 {
		r.cache.Invalidate(keys...)
	}
}
