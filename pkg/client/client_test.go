package client

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/usersvc/pkg/api"
	"github.com/ssargent/usersvc/pkg/store"
	"github.com/ssargent/usersvc/pkg/wire"
)

// cannedServer answers every connection with reply and hands the request
// it read to got.
func cannedServer(t *testing.T, reply string) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1024)
			n, _ := conn.Read(buf)
			got <- string(buf[:n])
			_, _ = io.WriteString(conn, reply)
			conn.Close()
		}
	}()

	return ln.Addr().String(), got
}

func TestClient_Do(t *testing.T) {
	addr, got := cannedServer(t, "HTTP/1.1 404 NOT FOUND\r\nContent-Type: application/json\r\n\r\nUSER NOT FOUND")

	resp, err := New(addr).Do(context.Background(), "GET", "/user/3", "")
	require.NoError(t, err)
	assert.Equal(t, wire.NotFound("USER NOT FOUND"), resp)
	assert.Equal(t, "GET /user/3 HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 0\r\n\r\n", <-got)
}

func TestClient_StatusError(t *testing.T) {
	addr, _ := cannedServer(t, "HTTP/1.1 500 INTERNAL SERVER ERROR\r\nContent-Type: application/json\r\n\r\nInternal Server Error")

	err := New(addr).Delete(context.Background(), 1)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Response.Status.Code())
	assert.Equal(t, "server replied 500: Internal Server Error", err.Error())
}

func TestClient_ServerClosesSilently(t *testing.T) {
	addr, _ := cannedServer(t, "")

	_, err := New(addr).Do(context.Background(), "GET", "/users", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without replying")
}

func TestClient_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(addr)
	c.Timeout = time.Second
	_, err = c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestClient_AgainstServer(t *testing.T) {
	gw, err := store.Open("sqlite://"+filepath.Join(t.TempDir(), "users.db"), store.PoolConfig{MaxOpenConns: 2})
	require.NoError(t, err)
	defer gw.Close()
	require.NoError(t, gw.Bootstrap(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := api.NewServer(gw, api.ServerConfig{MaxConnections: 2}, api.NewMetrics(prometheus.NewRegistry()), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	c := New(ln.Addr().String())

	users, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, c.Create(ctx, "Ann", "ann@x.io"))
	require.NoError(t, c.Create(ctx, "Bo", "bo@x.io"))

	users, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bo", users[1].Name)

	require.NoError(t, c.Update(ctx, 1, "Ann B", "annb@x.io"))
	u, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), *u.ID)
	assert.Equal(t, "annb@x.io", u.Email)

	require.NoError(t, c.Delete(ctx, 1))
	_, err = c.Get(ctx, 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.NotFound("USER NOT FOUND"), se.Response)
}
