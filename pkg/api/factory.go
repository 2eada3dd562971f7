// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ssargent/usersvc/pkg/store"
)

// DefaultStoreFactory opens SQL-backed user stores
type DefaultStoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() StoreFactory {
	return &DefaultStoreFactory{}
}

// OpenStore opens a SQL gateway for url
func (f *DefaultStoreFactory) OpenStore(url string, pool store.PoolConfig) (UserStore, error) {
	g, err := store.Open(url, pool)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer binds config.Addr and serves until ctx is done
func (s *DefaultServerStarter) StartServer(
	ctx context.Context,
	gateway store.Gateway,
	config ServerConfig,
	metrics *Metrics,
	logger zerolog.Logger,
) error {
	return NewServer(gateway, config, metrics, logger).ListenAndServe(ctx)
}
