package patrolkit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patrolkit/patrolkit/apierror"
	"github.com/patrolkit/patrolkit/cache"
)

// newTestServer serves canned fixtures for every resource path and counts
// hits per path.
func newTestServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	fixtures := map[string]string{
		"/v1/server": `{"Name":"Liberty One","OwnerId":11,"CoOwnerIds":[12],
			"CurrentPlayers":2,"MaxPlayers":40,"JoinKey":"LbOne",
			"AccVerifiedReq":"Disabled","TeamBalance":false}`,
		"/v1/server/players": `[{"Player":"Alice:1","Permission":"Server Owner","Team":"Police","Callsign":"1A-01"},
			{"Player":"Bob:2","Permission":"Normal","Team":"Civilian"}]`,
		"/v1/server/queue":    `[301,302]`,
		"/v1/server/bans":     `{"9001":"Griefer"}`,
		"/v1/server/staff":    `{"CoOwners":[12],"Admins":{"21":"Ada"},"Mods":{"31":"Mo"}}`,
		"/v1/server/vehicles": `[{"Name":"Falcon Interceptor","Owner":"Alice","Texture":"Ghost"}]`,
		"/v1/server/joinlogs": `[{"Join":true,"Timestamp":1700000000,"Player":"Bob:2"}]`,
		"/v1/server/killlogs": `[{"Killed":"Bob:2","Timestamp":1700000100,"Killer":"Alice:1"}]`,
		"/v1/server/commandlogs": `[{"Player":"Alice:1","Timestamp":1700000200,"Command":":h hi"}]`,
		"/v1/server/modcalls": `[{"Caller":"Bob:2","Timestamp":1700000300}]`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		if r.Header.Get("Server-Key") == "" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"code":2000,"message":"missing server key"}`)
			return
		}

		if r.Method == http.MethodPost && r.URL.Path == "/v1/server/command" {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.NotEmpty(t, body["command"])
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{}`)
			return
		}

		fixture, ok := fixtures[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("X-RateLimit-Limit", "35")
		w.Header().Set("X-RateLimit-Remaining", "34")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, fixture)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		ServerKey: "srv-key",
		BaseURL:   server.URL + "/v1",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close()) })
	return client
}

func TestClientResourceAccessors(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := newTestClient(t, server, nil)
	ctx := context.Background()

	status, err := client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "Liberty One", status.Name)
	require.Equal(t, int64(11), status.OwnerID)
	require.Equal(t, 40, status.MaxPlayers)

	players, err := client.Players(ctx)
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, "Alice", players[0].Name())
	require.Equal(t, int64(1), players[0].ID())
	require.Equal(t, "Police", players[0].Team)

	queue, err := client.QueuedPlayers(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{301, 302}, queue)

	bans, err := client.Bans(ctx)
	require.NoError(t, err)
	require.Equal(t, "Griefer", bans["9001"])

	staff, err := client.Staff(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{12}, staff.CoOwners)
	require.Equal(t, "Ada", staff.Admins["21"])

	vehicles, err := client.Vehicles(ctx)
	require.NoError(t, err)
	require.Equal(t, "Falcon Interceptor", vehicles[0].Name)

	joins, err := client.JoinLogs(ctx)
	require.NoError(t, err)
	require.True(t, joins[0].Join)

	kills, err := client.KillLogs(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alice:1", kills[0].Killer)

	commands, err := client.CommandLogs(ctx)
	require.NoError(t, err)
	require.Equal(t, ":h hi", commands[0].Command)

	calls, err := client.ModCalls(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bob:2", calls[0].Caller)
	require.Empty(t, calls[0].Moderator)

	window, ok := client.RateLimit()
	require.True(t, ok)
	require.Equal(t, 35, window.Limit)
	require.Equal(t, 34, window.Remaining)
}

func TestClientCachingAndPacing(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := newTestClient(t, server, func(cfg *Config) {
		cfg.Cache = CacheConfig{Enabled: true, TTL: time.Minute, SweepInterval: -1}
		cfg.Queue = QueueConfig{Enabled: true, Workers: 1}
	})
	ctx := context.Background()

	first, err := client.Players(ctx)
	require.NoError(t, err)
	second, err := client.Players(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(1), hits.Load(), "second read must come from the cache")

	_, err = client.Players(ctx, WithoutCache())
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())

	stats, ok := client.CacheStats()
	require.True(t, ok)
	require.Equal(t, uint64(1), stats.Hits)

	qs := client.QueueStatus()
	require.True(t, qs.Running)
	require.Equal(t, cache.StatusDisabled, client.CacheStatus())
}

func TestClientRunCommand(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := newTestClient(t, server, nil)

	require.NoError(t, client.RunCommand(context.Background(), HintCommand("hello")))
}

func TestClientErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"code":2002,"message":"invalid server key"}`)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server, nil)

	_, err := client.Players(context.Background())
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, apierror.CodeInvalidServerKey, apiErr.Code)
	require.True(t, apiErr.IsAuth())
}

func TestClientRequiresServerKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
