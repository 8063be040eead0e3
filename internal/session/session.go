// Package session owns the console's authentication state. All transitions
// run through the Manager so the rest of the process observes a single
// consistent view of who, if anyone, is logged in.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"mcp-console/internal/client"
	"mcp-console/internal/notify"
)

// TokenStore persists the bearer token across process restarts
type TokenStore interface {
	Token() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// Resetter clears cached remote data when the session ends
type Resetter interface {
	Reset()
}

// Session is an immutable snapshot of the authentication state
type Session struct {
	User          *client.User
	Authenticated bool
	Loading       bool
}

// Manager drives session transitions: boot restoration, login, logout, and
// forced expiry when the service rejects the credential
type Manager struct {
	mu       sync.RWMutex
	session  Session
	client   *client.Client
	store    TokenStore
	cache    Resetter
	notifier notify.Notifier
	logger   *logrus.Entry

	listenerMu sync.Mutex
	listeners  []func(Session)
}

// NewManager creates a session manager and installs the client's
// unauthorized hook so a rejected credential forces a local logout.
func NewManager(c *client.Client, store TokenStore, cache Resetter, notifier notify.Notifier, logger *logrus.Logger) *Manager {
	m := &Manager{
		client:   c,
		store:    store,
		cache:    cache,
		notifier: notifier,
		logger:   logger.WithField("component", "session"),
	}
	c.SetOnUnauthorized(m.handleUnauthorized)
	return m
}

// Boot restores a persisted session. With no stored token the manager
// settles unauthenticated without any network traffic. With a token it arms
// the client and validates it against the identity endpoint; validation
// failure clears the stored token and settles unauthenticated. Boot itself
// never fails the process over a bad or expired token.
func (m *Manager) Boot(ctx context.Context) error {
	token, err := m.store.Token()
	if err != nil {
		return err
	}

	if token == "" {
		m.setSession(Session{})
		return nil
	}

	m.client.Credentials().SetBearerToken(token)
	m.setSession(Session{Loading: true})

	user, err := m.client.Me(ctx)
	if err != nil {
		m.logger.WithError(err).Info("Stored session token rejected, starting unauthenticated")
		m.client.Credentials().Clear()
		if clearErr := m.store.ClearToken(); clearErr != nil {
			m.logger.WithError(clearErr).Warn("Failed to clear stored session token")
		}
		m.setSession(Session{})
		return nil
	}

	m.logger.WithField("username", user.Username).Info("Session restored")
	m.setSession(Session{User: user, Authenticated: true})
	return nil
}

// Login authenticates against the remote service and, on success, arms and
// persists the issued bearer token
func (m *Manager) Login(ctx context.Context, username, password string) error {
	resp, err := m.client.Login(ctx, username, password)
	if err != nil {
		m.logger.WithError(err).WithField("username", username).Warn("Login failed")
		m.notifier.Error(client.Message(err))
		return err
	}

	m.client.Credentials().SetBearerToken(resp.AccessToken)
	if err := m.store.SaveToken(resp.AccessToken); err != nil {
		// The session still works for this process lifetime
		m.logger.WithError(err).Warn("Failed to persist session token")
	}

	m.setSession(Session{User: &resp.User, Authenticated: true})
	m.logger.WithField("username", resp.User.Username).Info("Logged in")
	m.notifier.Success("Logged in as " + resp.User.Username)
	return nil
}

// Logout ends the session. The remote invalidation is best effort: local
// state is cleared regardless of whether the service call succeeds.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.client.Logout(ctx); err != nil {
		m.logger.WithError(err).Debug("Remote logout failed, clearing local session anyway")
	}

	m.clearLocal()
	m.logger.Info("Logged out")
	m.notifier.Info("Logged out")
}

// ChangePassword changes the current user's password. The session and its
// token stay valid afterwards.
func (m *Manager) ChangePassword(ctx context.Context, current, updated string) error {
	if err := m.client.ChangePassword(ctx, current, updated); err != nil {
		m.notifier.Error(client.Message(err))
		return err
	}
	m.notifier.Success("Password changed")
	return nil
}

// Snapshot returns the current session state
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Authenticated reports whether a user is currently logged in
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Authenticated
}

// OnChange registers a listener invoked after every session transition
func (m *Manager) OnChange(fn func(Session)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// handleUnauthorized reacts to the client reporting a rejected credential.
// Only a live session is torn down: 401s from bad login attempts or races
// after an explicit logout must not produce spurious expiry notices.
func (m *Manager) handleUnauthorized() {
	if !m.Authenticated() {
		return
	}

	m.logger.Warn("Session rejected by the service, logging out")
	m.clearLocal()
	m.notifier.Error("Your session has expired. Please log in again.")
}

// clearLocal drops the credential, the persisted token, the cached remote
// data, and the in-memory session
func (m *Manager) clearLocal() {
	m.client.Credentials().Clear()
	if err := m.store.ClearToken(); err != nil {
		m.logger.WithError(err).Warn("Failed to clear stored session token")
	}
	m.cache.Reset()
	m.setSession(Session{})
}

func (m *Manager) setSession(s Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.listenerMu.Lock()
	listeners := make([]func(Session), len(m.listeners))
	copy(listeners, m.listeners)
	m.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
