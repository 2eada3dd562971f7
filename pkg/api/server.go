// Package api serves the usersvc protocol: framing, routing, the five user
// operations, metrics and the admin HTTP surface.
package api

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/semaphore"

	"github.com/ssargent/usersvc/pkg/store"
	"github.com/ssargent/usersvc/pkg/wire"
)

// acceptBackoff is the pause after a transient accept error.
const acceptBackoff = 10 * time.Millisecond

// Server accepts protocol connections and answers one request per
// connection.
type Server struct {
	config   ServerConfig
	router   Router
	handlers *Handlers
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewServer creates a new user server
func NewServer(gateway store.Gateway, config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	config = config.withDefaults()

	policy := PolicyStrict
	if config.Legacy {
		policy = PolicyLegacy
	}

	return &Server{
		config:   config,
		router:   NewRouter(config.Legacy),
		handlers: NewHandlers(gateway, policy, metrics),
		metrics:  metrics,
		logger:   logger,
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to bind %s", s.config.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. The listener is
// closed on return and in-flight connections are allowed to finish.
//
// At most MaxConnections connections are served at once; further peers wait
// in the listen backlog.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("max_connections", s.config.MaxConnections).
		Bool("legacy", s.config.Legacy).
		Msg("usersvc listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	sem := semaphore.NewWeighted(int64(s.config.MaxConnections))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			s.logger.Info().Msg("usersvc stopped")
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("usersvc stopped")
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			time.Sleep(acceptBackoff)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn reads one request from conn, answers it and closes conn.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	logger := s.logger.With().
		Str("conn_id", ksuid.New().String()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	// Work already accepted is not abandoned on shutdown.
	ctx = logger.WithContext(context.WithoutCancel(ctx))

	if s.config.IOTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.config.IOTimeout))
	}

	start := time.Now()
	req, err := wire.ReadRequest(conn, s.config.BufferSize)
	if err != nil {
		if errors.Is(err, wire.ErrEmptyRequest) {
			logger.Debug().Msg("peer closed without a request")
		} else {
			logger.Warn().Err(err).Msg("read failed")
		}
		return
	}

	route, resp := s.dispatch(ctx, req)
	if err := wire.WriteResponse(conn, resp); err != nil {
		logger.Warn().Err(err).Msg("write failed")
	}

	duration := time.Since(start)
	s.metrics.RecordRequest(route, resp.Status.Code(), duration)
	logger.Info().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("route", route.String()).
		Int("status", resp.Status.Code()).
		Dur("duration", duration).
		Msg("request")
}

func (s *Server) dispatch(ctx context.Context, req *wire.Request) (route Route, resp wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Str("panic", fmt.Sprint(r)).
				Str("route", route.String()).
				Msg("handler panicked")
			resp = wire.InternalError()
		}
	}()

	route, id := s.router.Route(req)
	return route, s.handlers.Handle(ctx, route, id, req.Body)
}
