// Package console serves the local HTTP and WebSocket surface that console
// frontends attach to. It is the only consumer-facing layer; everything it
// exposes is backed by the session manager, the query orchestrator, and the
// mutation runner.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"mcp-console/internal/client"
	"mcp-console/internal/mutation"
	"mcp-console/internal/notify"
	"mcp-console/internal/poller"
	"mcp-console/internal/query"
	"mcp-console/internal/resources"
	"mcp-console/internal/session"
)

// Server is the local console HTTP server
type Server struct {
	logger     *logrus.Entry
	router     *mux.Router
	httpServer *http.Server

	client   *client.Client
	session  *session.Manager
	registry *resources.Registry
	orch     *query.Orchestrator
	cache    *query.Cache
	runner   *mutation.Runner
	tracker  *poller.Tracker
	hub      *notify.Hub
	ws       *wsManager
}

// NewServer wires the console surface over the shared components
func NewServer(
	listenAddr string,
	c *client.Client,
	sess *session.Manager,
	registry *resources.Registry,
	orch *query.Orchestrator,
	cache *query.Cache,
	runner *mutation.Runner,
	tracker *poller.Tracker,
	hub *notify.Hub,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		logger:   logger.WithField("component", "console"),
		router:   mux.NewRouter(),
		client:   c,
		session:  sess,
		registry: registry,
		orch:     orch,
		cache:    cache,
		runner:   runner,
		tracker:  tracker,
		hub:      hub,
		ws:       newWSManager(logger),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Push cache changes to connected clients so frontends re-read
	cache.Watch(func(key query.Key) {
		s.ws.Broadcast(Message{
			Type:      "query-update",
			Timestamp: time.Now().UTC(),
			Data:      map[string]string{"key": key.String()},
		})
	})

	return s
}

// Visible reports whether any console client is attached. The polling loops
// use this as their visibility signal.
func (s *Server) Visible() bool {
	return s.ws.ActiveClients() > 0
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting console server")

	notifications, cancel := s.hub.Subscribe()
	go func() {
		for n := range notifications {
			s.ws.Broadcast(Message{
				Type:      "notification",
				Timestamp: n.Timestamp,
				Data:      n,
			})
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		cancel()
		return s.Shutdown()
	case err := <-errChan:
		cancel()
		return fmt.Errorf("console server error: %w", err)
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down console server")
	s.ws.closeAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/session", s.handleSession).Methods("GET")
	api.HandleFunc("/session/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/session/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/session/change-password", s.handleChangePassword).Methods("POST")

	api.HandleFunc("/resources/{key:.+}", s.handleResource).Methods("GET")
	api.HandleFunc("/refresh/{key:.+}", s.handleRefresh).Methods("POST")
	api.HandleFunc("/notifications", s.handleNotifications).Methods("GET")

	api.HandleFunc("/servers/{name}/start", s.handleStartServer).Methods("POST")
	api.HandleFunc("/servers/{name}/stop", s.handleStopServer).Methods("POST")

	api.HandleFunc("/config/servers/{name}", s.handleUpdateServerConfig).Methods("PUT")
	api.HandleFunc("/config/servers/{name}", s.handleDeleteServerConfig).Methods("DELETE")

	api.HandleFunc("/api-keys", s.handleCreateAPIKey).Methods("POST")
	api.HandleFunc("/api-keys/{id:[0-9]+}", s.handleDeleteAPIKey).Methods("DELETE")

	s.router.HandleFunc("/ws", s.ws.Handle).Methods("GET")
}

// sessionView is the wire shape of the session snapshot
type sessionView struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *client.User `json:"user,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	s.writeJSON(w, http.StatusOK, sessionView{
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
		User:          snap.User,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.session.Login(r.Context(), req.Username, req.Password); err != nil {
		s.writeFailure(w, err)
		return
	}

	snap := s.session.Snapshot()
	s.writeJSON(w, http.StatusOK, sessionView{
		Authenticated: snap.Authenticated,
		User:          snap.User,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.tracker.StopAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req client.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.session.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resourceView is the wire shape of one cached resource read
type resourceView struct {
	Key       string      `json:"key"`
	Status    string      `json:"status"`
	FetchedAt *time.Time  `json:"fetched_at,omitempty"`
	Value     interface{} `json:"value"`
	Error     string      `json:"error,omitempty"`
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	resource, ok := s.registry.Lookup(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown resource key")
		return
	}

	value, err := s.orch.Read(r.Context(), resource)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	view := resourceView{Key: key, Value: value}
	if entry, ok := s.cache.Lookup(resource.Key); ok {
		view.Status = entry.Status.String()
		if !entry.FetchedAt.IsZero() {
			fetchedAt := entry.FetchedAt
			view.FetchedAt = &fetchedAt
		}
		if entry.Err != nil {
			view.Error = client.Message(entry.Err)
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	resource, ok := s.registry.Lookup(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown resource key")
		return
	}

	value, err := s.orch.Refetch(r.Context(), resource)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resourceView{Key: key, Status: query.StatusSuccess.String(), Value: value})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": s.hub.Recent(),
	})
}

func (s *Server) handleStartServer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req client.StartServerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	statusKey := resources.KeyServerStatus(name)
	result, err := s.runner.Run(r.Context(), mutation.Mutation{
		Name: "start-server",
		Execute: func(ctx context.Context) (interface{}, error) {
			return s.client.StartServer(ctx, name, req)
		},
		SuccessMessage: fmt.Sprintf("Server %q is starting", name),
		Invalidates:    []query.Key{resources.KeyServers},
		Optimistic: &mutation.Optimistic{
			Key:   statusKey,
			Apply: transitionalStatus(name, "starting"),
		},
		OnSuccess: func(interface{}) {
			s.trackTransition(name, "running")
		},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStopServer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	statusKey := resources.KeyServerStatus(name)
	result, err := s.runner.Run(r.Context(), mutation.Mutation{
		Name: "stop-server",
		Execute: func(ctx context.Context) (interface{}, error) {
			return s.client.StopServer(ctx, name)
		},
		SuccessMessage: fmt.Sprintf("Server %q is stopping", name),
		Invalidates:    []query.Key{resources.KeyServers},
		Optimistic: &mutation.Optimistic{
			Key:   statusKey,
			Apply: transitionalStatus(name, "stopping"),
		},
		OnSuccess: func(interface{}) {
			s.trackTransition(name, "stopped")
		},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateServerConfig(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var cfg client.ServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.runner.Run(r.Context(), mutation.Mutation{
		Name: "update-server-config",
		Execute: func(ctx context.Context) (interface{}, error) {
			return s.client.UpdateServerConfig(ctx, name, cfg)
		},
		SuccessMessage: fmt.Sprintf("Configuration for %q updated", name),
		Invalidates:    []query.Key{resources.KeyServerConfigs, resources.KeyServers},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteServerConfig(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	_, err := s.runner.Run(r.Context(), mutation.Mutation{
		Name: "delete-server-config",
		Execute: func(ctx context.Context) (interface{}, error) {
			return nil, s.client.DeleteServerConfig(ctx, name)
		},
		SuccessMessage: fmt.Sprintf("Configuration for %q deleted", name),
		Invalidates:    []query.Key{resources.KeyServerConfigs, resources.KeyServers},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req client.APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.runner.Run(r.Context(), mutation.Mutation{
		Name: "create-api-key",
		Execute: func(ctx context.Context) (interface{}, error) {
			return s.client.CreateAPIKey(ctx, req)
		},
		SuccessMessage: fmt.Sprintf("API key %q created", req.Name),
		Invalidates:    []query.Key{resources.KeyAPIKeys},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid API key id")
		return
	}

	_, err = s.runner.Run(r.Context(), mutation.Mutation{
		Name: "delete-api-key",
		Execute: func(ctx context.Context) (interface{}, error) {
			return nil, s.client.DeleteAPIKey(ctx, id)
		},
		SuccessMessage: "API key deleted",
		Invalidates:    []query.Key{resources.KeyAPIKeys},
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// trackTransition registers the status tracker for a server leaving a
// transitional state. Tracking ends when the server reaches the target
// state or reports an error.
func (s *Server) trackTransition(name, target string) {
	s.tracker.Start(name, resources.KeyServerStatus(name), func(value interface{}, found bool) bool {
		if !found {
			return false
		}
		status, ok := value.(*client.ServerStatus)
		if !ok {
			return false
		}
		return status.State == target || status.State == "error"
	})
}

// transitionalStatus builds the optimistic status transform for a server
// entering a transitional state
func transitionalStatus(name, state string) func(current interface{}) interface{} {
	return func(current interface{}) interface{} {
		if status, ok := current.(*client.ServerStatus); ok && status != nil {
			updated := *status
			updated.State = state
			return &updated
		}
		return &client.ServerStatus{Name: name, State: state}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps an upstream failure to a local response
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNotAuthenticated) {
		s.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	status := http.StatusBadGateway
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		status = apiErr.StatusCode
	}
	s.writeError(w, status, client.Message(err))
}
