package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const countUsers = "SELECT COUNT(*) FROM users"

// Stats describes the store for diagnostics.
type Stats struct {
	Dialect string        `json:"dialect"`
	Users   int64         `json:"users"`
	Uptime  time.Duration `json:"uptime"`
	Pool    PoolStats     `json:"pool"`
}

// PoolStats is a snapshot of the connection pool.
type PoolStats struct {
	MaxOpen      int           `json:"max_open"`
	Open         int           `json:"open"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

// Stats counts the stored users and snapshots the pool.
func (g *SQLGateway) Stats(ctx context.Context) (*Stats, error) {
	var n int64
	if err := g.db.QueryRowContext(ctx, countUsers).Scan(&n); err != nil {
		return nil, errors.Wrap(ErrStatement, err.Error())
	}

	s := g.db.Stats()
	return &Stats{
		Dialect: g.dialect.Name,
		Users:   n,
		Uptime:  time.Since(g.opened),
		Pool: PoolStats{
			MaxOpen:      s.MaxOpenConnections,
			Open:         s.OpenConnections,
			InUse:        s.InUse,
			Idle:         s.Idle,
			WaitCount:    s.WaitCount,
			WaitDuration: s.WaitDuration,
		},
	}, nil
}

// DB exposes the pool, e.g. for a database/sql stats collector.
func (g *SQLGateway) DB() *sql.DB {
	return g.db
}
