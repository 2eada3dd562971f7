// Package api provides interfaces for dependency injection
package api

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/ssargent/usersvc/pkg/store"
)

// UserStore is the store surface the service runs on.
type UserStore interface {
	store.Gateway
	AdminStore

	// Bootstrap creates the users table if it is missing
	Bootstrap(ctx context.Context) error

	// DB exposes the underlying pool for metrics
	DB() *sql.DB

	// Close releases the connection pool
	Close() error
}

// StoreFactory opens user stores
type StoreFactory interface {
	// OpenStore opens the store named by url with the given pool limits
	OpenStore(url string, pool store.PoolConfig) (UserStore, error)
}

// ServerStarter defines the interface for starting the protocol server
type ServerStarter interface {
	// StartServer serves until ctx is done
	StartServer(ctx context.Context, gateway store.Gateway, config ServerConfig, metrics *Metrics, logger zerolog.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
