package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-console/internal/client"
	"mcp-console/internal/query"
	"mcp-console/internal/tokenstore"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	infos     []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

type fixture struct {
	manager  *Manager
	client   *client.Client
	store    *tokenstore.Store
	cache    *query.Cache
	notifier *recordingNotifier
	requests *int32
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c, err := client.New(&client.Config{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
		Retry: client.RetryPolicy{
			MaxRetries:        1,
			BaseDelay:         time.Millisecond,
			RetryableStatuses: map[int]bool{},
		},
	}, logger)
	require.NoError(t, err)

	store, err := tokenstore.Open(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cache := query.NewCache()
	notifier := &recordingNotifier{}

	return &fixture{
		manager:  NewManager(c, store, cache, notifier, logger),
		client:   c,
		store:    store,
		cache:    cache,
		notifier: notifier,
		requests: &requests,
	}
}

func meHandler(t *testing.T, wantToken string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/me" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
			return
		}
		json.NewEncoder(w).Encode(client.User{ID: 1, Username: "admin"})
	})
}

func TestBoot_NoStoredToken(t *testing.T) {
	f := newFixture(t, meHandler(t, "unused"))

	require.NoError(t, f.manager.Boot(context.Background()))

	assert.False(t, f.manager.Authenticated())
	// Absence of a token settles locally without any network traffic
	assert.Equal(t, int32(0), atomic.LoadInt32(f.requests))
}

func TestBoot_RestoresValidToken(t *testing.T) {
	f := newFixture(t, meHandler(t, "stored-token"))
	require.NoError(t, f.store.SaveToken("stored-token"))

	require.NoError(t, f.manager.Boot(context.Background()))

	snap := f.manager.Snapshot()
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "admin", snap.User.Username)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.requests))
}

func TestBoot_RejectedTokenClearsEverything(t *testing.T) {
	f := newFixture(t, meHandler(t, "other-token"))
	require.NoError(t, f.store.SaveToken("stale-token"))

	require.NoError(t, f.manager.Boot(context.Background()))

	assert.False(t, f.manager.Authenticated())
	assert.False(t, f.client.Credentials().HasBearerToken())

	token, err := f.store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	// Exactly one validation attempt went out
	assert.Equal(t, int32(1), atomic.LoadInt32(f.requests))
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var req client.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "admin" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(client.LoginResponse{
			AccessToken: "issued-token",
			TokenType:   "bearer",
			User:        client.User{ID: 1, Username: "admin"},
		})
	}))

	require.NoError(t, f.manager.Login(context.Background(), "admin", "secret"))

	assert.True(t, f.manager.Authenticated())
	assert.True(t, f.client.Credentials().HasBearerToken())

	token, err := f.store.Token()
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token)

	assert.Equal(t, []string{"Logged in as admin"}, f.notifier.successes)
}

func TestLogin_FailureNotifiesClassifiedMessage(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
	}))

	err := f.manager.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	assert.False(t, f.manager.Authenticated())
	require.Len(t, f.notifier.errors, 1)
	assert.Equal(t, "Incorrect username or password", f.notifier.errors[0])

	token, storeErr := f.store.Token()
	require.NoError(t, storeErr)
	assert.Empty(t, token)
}

func TestLogout_ClearsLocalStateEvenWhenRemoteFails(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	// Simulate a live session
	f.client.Credentials().SetBearerToken("live-token")
	require.NoError(t, f.store.SaveToken("live-token"))
	f.cache.Set(query.NewKey("servers", "list"), "data")
	f.manager.setSession(Session{User: &client.User{Username: "admin"}, Authenticated: true})

	f.manager.Logout(context.Background())

	assert.False(t, f.manager.Authenticated())
	assert.False(t, f.client.Credentials().HasBearerToken())
	assert.Empty(t, f.cache.Entries())

	token, err := f.store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestUnauthorizedHook_TearsDownLiveSession(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Token expired"})
	}))

	f.client.Credentials().SetBearerToken("expired-token")
	require.NoError(t, f.store.SaveToken("expired-token"))
	f.manager.setSession(Session{User: &client.User{Username: "admin"}, Authenticated: true})

	// Any authenticated request coming back 401 fires the hook
	_, err := f.client.Me(context.Background())
	require.Error(t, err)

	assert.False(t, f.manager.Authenticated())
	require.Len(t, f.notifier.errors, 1)
	assert.Equal(t, "Your session has expired. Please log in again.", f.notifier.errors[0])
}

func TestUnauthorizedHook_IgnoredWhileUnauthenticated(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
	}))

	// A failed login attempt also answers 401; no expiry notice should fire
	err := f.manager.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	require.Len(t, f.notifier.errors, 1)
	assert.Equal(t, "Incorrect username or password", f.notifier.errors[0])
}

func TestChangePassword(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNoContent)

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/change-password", r.URL.Path)
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusBadRequest {
			json.NewEncoder(w).Encode(map[string]string{"detail": "Current password is incorrect"})
		}
	}))

	require.NoError(t, f.manager.ChangePassword(context.Background(), "old", "new"))
	assert.Equal(t, []string{"Password changed"}, f.notifier.successes)

	status.Store(http.StatusBadRequest)
	err := f.manager.ChangePassword(context.Background(), "bad", "new")
	require.Error(t, err)
	require.Len(t, f.notifier.errors, 1)
	assert.Equal(t, "Current password is incorrect", f.notifier.errors[0])
}

func TestOnChange_ListenersObserveTransitions(t *testing.T) {
	f := newFixture(t, meHandler(t, "unused"))

	var mu sync.Mutex
	var transitions []bool
	f.manager.OnChange(func(s Session) {
		mu.Lock()
		transitions = append(transitions, s.Authenticated)
		mu.Unlock()
	})

	require.NoError(t, f.manager.Boot(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false}, transitions)
}
