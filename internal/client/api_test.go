package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManagementAPI serves a minimal slice of the remote management surface
func fakeManagementAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Username != "admin" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
			return
		}

		json.NewEncoder(w).Encode(LoginResponse{
			AccessToken: "tok-abc",
			TokenType:   "bearer",
			ExpiresIn:   1800,
			User:        User{ID: 1, Username: "admin"},
		})
	})

	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "User not authenticated"})
			return
		}
		json.NewEncoder(w).Encode(User{ID: 1, Username: "admin"})
	})

	mux.HandleFunc("/api/servers/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"servers": map[string]interface{}{
				"echo": map[string]interface{}{
					"name":   "echo",
					"config": map[string]interface{}{"enabled": true},
					"status": ServerStatus{
						ID: "1", Name: "echo", State: "running",
						Endpoints: map[string]string{}, Capabilities: map[string]int{"tools": 2},
					},
				},
			},
		})
	})

	mux.HandleFunc("/api/config/servers/old", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/api/status/mcp-statistics", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Statistics{
			Timestamp:              "now",
			Servers:                map[string]ServerStatistics{},
			TotalActiveConnections: 4,
			TotalCalls:             map[string]int{"tools": 10, "prompts": 0, "resources": 1},
		})
	})

	return httptest.NewServer(mux)
}

func TestAPI_Login(t *testing.T) {
	server := fakeManagementAPI(t)
	defer server.Close()

	c := testClient(t, server.URL)

	resp, err := c.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", resp.AccessToken)
	assert.Equal(t, "admin", resp.User.Username)

	_, err = c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", Message(err))
}

func TestAPI_Me(t *testing.T) {
	server := fakeManagementAPI(t)
	defer server.Close()

	c := testClient(t, server.URL)
	c.Credentials().SetBearerToken("tok-abc")

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}

func TestAPI_ListServers(t *testing.T) {
	server := fakeManagementAPI(t)
	defer server.Close()

	c := testClient(t, server.URL)

	servers, err := c.ListServers(context.Background())
	require.NoError(t, err)
	require.Contains(t, servers, "echo")
	assert.Equal(t, "running", servers["echo"].Status.State)
	assert.Equal(t, 2, servers["echo"].Status.Capabilities["tools"])
}

func TestAPI_DeleteServerConfig(t *testing.T) {
	server := fakeManagementAPI(t)
	defer server.Close()

	c := testClient(t, server.URL)
	assert.NoError(t, c.DeleteServerConfig(context.Background(), "old"))
}

func TestAPI_Statistics(t *testing.T) {
	server := fakeManagementAPI(t)
	defer server.Close()

	c := testClient(t, server.URL)

	stats, err := c.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalActiveConnections)
	assert.Equal(t, 10, stats.TotalCalls["tools"])
}
