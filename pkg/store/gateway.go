// Package store is the gateway between usersvc operations and the relational
// users table.
//
// Connections come from a database/sql pool: each request acquires one with
// Gateway.Connect and returns it with Conn.Close. Nothing is held between
// requests and no statement spans a transaction.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/ssargent/usersvc/pkg/model"
)

var (
	// ErrConnect is returned when no connection to the store can be acquired.
	ErrConnect = errors.New("store connect failed")

	// ErrStatement is returned when a statement fails on a live connection.
	ErrStatement = errors.New("store statement failed")
)

// Gateway hands out per-request connections.
type Gateway interface {
	Connect(ctx context.Context) (Conn, error)
	Statements() Statements
}

// Conn is a connection scoped to one request.
type Conn interface {
	// Query runs a statement returning (id, name, email) rows.
	Query(ctx context.Context, query string, args ...any) ([]model.User, error)

	// Execute runs a statement and returns the number of rows affected.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// Close releases the connection back to the pool.
	Close() error
}

// PoolConfig sizes the connection pool. Zero values keep database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLGateway is a Gateway over database/sql.
type SQLGateway struct {
	db      *sql.DB
	dialect Dialect
	opened  time.Time
}

// Open creates a gateway for the given database URL. No connection is made
// until the first Connect, Ping or Bootstrap.
func Open(url string, pool PoolConfig) (*SQLGateway, error) {
	dialect, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect.Name)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	return &SQLGateway{db: db, dialect: dialect, opened: time.Now()}, nil
}

// Dialect returns the dialect chosen from the database URL.
func (g *SQLGateway) Dialect() Dialect {
	return g.dialect
}

// Statements returns the dialect's user statements.
func (g *SQLGateway) Statements() Statements {
	return g.dialect.Statements
}

// Bootstrap creates the users table if it does not exist.
func (g *SQLGateway) Bootstrap(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, g.dialect.Schema); err != nil {
		return errors.Wrap(err, "failed to create users table")
	}
	return nil
}

// Ping verifies the store is reachable.
func (g *SQLGateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return errors.Wrap(ErrConnect, err.Error())
	}
	return nil
}

// Connect acquires a connection from the pool.
func (g *SQLGateway) Connect(ctx context.Context) (Conn, error) {
	c, err := g.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrConnect, err.Error())
	}
	return &sqlConn{conn: c}, nil
}

// Close closes the pool.
func (g *SQLGateway) Close() error {
	return g.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(ErrStatement, err.Error())
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var (
			id          int32
			name, email string
		)
		if err := rows.Scan(&id, &name, &email); err != nil {
			return nil, errors.Wrap(ErrStatement, err.Error())
		}
		users = append(users, model.NewUser(id, name, email))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(ErrStatement, err.Error())
	}

	return users, nil
}

func (c *sqlConn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(ErrStatement, err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(ErrStatement, err.Error())
	}
	return n, nil
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}
