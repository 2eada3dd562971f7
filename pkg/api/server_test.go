package api

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/usersvc/pkg/store"
	"github.com/ssargent/usersvc/pkg/wire"
)

// startTestServer serves a fresh sqlite store on a loopback port.
func startTestServer(t *testing.T, cfg ServerConfig) (string, *Metrics) {
	t.Helper()

	url := "sqlite://" + filepath.Join(t.TempDir(), "users.db")
	gw, err := store.Open(url, store.PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	require.NoError(t, gw.Bootstrap(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	srv := NewServer(gw, cfg, metrics, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return ln.Addr().String(), metrics
}

// roundTrip sends raw in one write and reads until the server closes.
func roundTrip(t *testing.T, addr, raw string) wire.Response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)

	resp, err := wire.ParseResponse(out)
	require.NoError(t, err)
	return resp
}

func request(method, path, body string) string {
	return method + " " + path + " HTTP/1.1\r\nHost: localhost\r\nContent-Type: application/json\r\n\r\n" + body
}

func TestServer_Lifecycle(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		name := "strict"
		if legacy {
			name = "legacy"
		}
		t.Run(name, func(t *testing.T) {
			addr, _ := startTestServer(t, ServerConfig{MaxConnections: 4, Legacy: legacy})

			resp := roundTrip(t, addr, request("GET", "/users", ""))
			assert.Equal(t, wire.OK("[]"), resp)

			resp = roundTrip(t, addr, request("POST", "/user", `{"name":"Ann","email":"ann@x.io"}`))
			assert.Equal(t, wire.OK("User created"), resp)

			resp = roundTrip(t, addr, request("POST", "/user", `{"id":42,"name":"Bo","email":"bo@x.io"}`))
			assert.Equal(t, wire.OK("User created"), resp)

			resp = roundTrip(t, addr, request("GET", "/users", ""))
			assert.Equal(t, wire.OK(`[{"id":1,"name":"Ann","email":"ann@x.io"},{"id":2,"name":"Bo","email":"bo@x.io"}]`), resp)

			resp = roundTrip(t, addr, request("GET", "/user/2", ""))
			assert.Equal(t, wire.OK(`{"id":2,"name":"Bo","email":"bo@x.io"}`), resp)

			resp = roundTrip(t, addr, request("PUT", "/user/1", `{"name":"Ann B","email":"annb@x.io"}`))
			assert.Equal(t, wire.OK("User updated"), resp)

			resp = roundTrip(t, addr, request("GET", "/user/1", ""))
			assert.Equal(t, wire.OK(`{"id":1,"name":"Ann B","email":"annb@x.io"}`), resp)

			resp = roundTrip(t, addr, request("DELETE", "/user/1", ""))
			assert.Equal(t, wire.OK("User deleted"), resp)

			resp = roundTrip(t, addr, request("GET", "/user/1", ""))
			assert.Equal(t, wire.NotFound("USER NOT FOUND"), resp)

			resp = roundTrip(t, addr, request("DELETE", "/user/1", ""))
			assert.Equal(t, wire.NotFound("USER NOT FOUND"), resp)

			resp = roundTrip(t, addr, request("GET", "/user/abc", ""))
			assert.Equal(t, wire.InternalError(), resp)

			resp = roundTrip(t, addr, request("POST", "/user", `{"name":"Cy"}`))
			assert.Equal(t, wire.InternalError(), resp)

			resp = roundTrip(t, addr, request("PATCH", "/user/2", ""))
			assert.Equal(t, wire.NotFound("Not Found"), resp)
		})
	}
}

func TestServer_UpdateMissingUser(t *testing.T) {
	addr, _ := startTestServer(t, ServerConfig{})
	resp := roundTrip(t, addr, request("PUT", "/user/77", `{"name":"Ann","email":"ann@x.io"}`))
	assert.Equal(t, wire.NotFound("USER NOT FOUND"), resp)

	legacyAddr, _ := startTestServer(t, ServerConfig{Legacy: true})
	resp = roundTrip(t, legacyAddr, request("PUT", "/user/77", `{"name":"Ann","email":"ann@x.io"}`))
	assert.Equal(t, wire.OK("User updated"), resp)
}

func TestServer_RoutingModes(t *testing.T) {
	strictAddr, _ := startTestServer(t, ServerConfig{})
	legacyAddr, _ := startTestServer(t, ServerConfig{Legacy: true})

	// Prefix matching sends /users/<anything> to list.
	assert.Equal(t, wire.OK("[]"), roundTrip(t, legacyAddr, request("GET", "/users/9", "")))
	assert.Equal(t, wire.NotFound("Not Found"), roundTrip(t, strictAddr, request("GET", "/users/9", "")))

	assert.Equal(t, wire.OK("[]"), roundTrip(t, strictAddr, request("GET", "/users?page=2", "")))
}

func TestServer_RawResponseFormat(t *testing.T) {
	addr, _ := startTestServer(t, ServerConfig{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /nowhere HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 404 NOT FOUND\r\nContent-Type: application/json\r\n\r\nNot Found", string(out))
}

func TestServer_EmptyRequestGetsNoReply(t *testing.T) {
	addr, _ := startTestServer(t, ServerConfig{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestServer_ServesConnectionsConcurrently(t *testing.T) {
	addr, metrics := startTestServer(t, ServerConfig{MaxConnections: 2})

	// An idle peer holds one slot; the other slot keeps serving.
	idle, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer idle.Close()

	resp := roundTrip(t, addr, request("GET", "/users", ""))
	assert.Equal(t, wire.OK("[]"), resp)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			_, _ = conn.Write([]byte(request("POST", "/user", `{"name":"N","email":"n@x.io"}`)))
			out, _ := io.ReadAll(conn)
			assert.True(t, strings.HasPrefix(string(out), "HTTP/1.1 200 OK"))
		}()
	}
	wg.Wait()

	resp = roundTrip(t, addr, request("GET", "/user/8", ""))
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.GreaterOrEqual(t, metricValue(t, metrics.connectionsTotal), 10.0)
}

func TestServer_IOTimeoutReleasesSlot(t *testing.T) {
	addr, _ := startTestServer(t, ServerConfig{MaxConnections: 1, IOTimeout: 100 * time.Millisecond})

	idle, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer idle.Close()

	resp := roundTrip(t, addr, request("GET", "/users", ""))
	assert.Equal(t, wire.OK("[]"), resp)
}

func TestServer_ShutdownStopsAccepting(t *testing.T) {
	gw, err := store.Open("sqlite://"+filepath.Join(t.TempDir(), "users.db"), store.PoolConfig{})
	require.NoError(t, err)
	defer gw.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(gw, ServerConfig{}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	assert.Error(t, err)
}

type panicRouter struct{}

func (panicRouter) Route(*wire.Request) (Route, string) { panic("boom") }

func TestServer_RecoversHandlerPanic(t *testing.T) {
	srv := NewServer(&fakeGateway{}, ServerConfig{}, nil, zerolog.Nop())
	srv.router = panicRouter{}

	client, server := net.Pipe()
	defer client.Close()

	go srv.ServeConn(context.Background(), server)

	_, err := client.Write([]byte(request("GET", "/users", "")))
	require.NoError(t, err)
	out, err := io.ReadAll(client)
	require.NoError(t, err)

	resp, err := wire.ParseResponse(out)
	require.NoError(t, err)
	assert.Equal(t, wire.InternalError(), resp)
}
