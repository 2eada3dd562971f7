package store

import (
	"strings"

	"github.com/pkg/errors"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedURL is returned for database URLs with no known dialect.
var ErrUnsupportedURL = errors.New("unsupported database url")

// Statements holds the SQL issued by the five user operations.
//
// Get, Update and Delete take the id as their last parameter; Insert and
// Update take name then email.
type Statements struct {
	List   string
	Get    string
	Insert string
	Update string
	Delete string
}

// Dialect binds a database/sql driver to its schema and statements.
type Dialect struct {
	Name       string
	Driver     string
	Schema     string
	Statements Statements
}

// Postgres is served by github.com/lib/pq.
var Postgres = Dialect{
	Name:   "postgres",
	Driver: "postgres",
	Schema: `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name VARCHAR NOT NULL,
			email VARCHAR NOT NULL
		)`,
	Statements: Statements{
		List:   "SELECT id, name, email FROM users ORDER BY id",
		Get:    "SELECT id, name, email FROM users WHERE id = $1",
		Insert: "INSERT INTO users (name, email) VALUES ($1, $2)",
		Update: "UPDATE users SET name = $1, email = $2 WHERE id = $3",
		Delete: "DELETE FROM users WHERE id = $1",
	},
}

// SQLite is served by modernc.org/sqlite.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Schema: `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL
		)`,
	Statements: Statements{
		List:   "SELECT id, name, email FROM users ORDER BY id",
		Get:    "SELECT id, name, email FROM users WHERE id = ?",
		Insert: "INSERT INTO users (name, email) VALUES (?, ?)",
		Update: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		Delete: "DELETE FROM users WHERE id = ?",
	},
}

const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// ParseURL picks the dialect for a database URL and returns the DSN to hand
// to its driver.
//
//	postgres://..., postgresql://...  lib/pq, URL passed through
//	host=... dbname=...               lib/pq key/value DSN
//	sqlite://<path>                   modernc sqlite on <path>
//	file:<path>                       modernc sqlite URI
func ParseURL(url string) (Dialect, string, error) {
	lower := strings.ToLower(url)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, url, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := url[len("sqlite://"):]
		if path == "" {
			return Dialect{}, "", errors.Wrap(ErrUnsupportedURL, "sqlite url has no path")
		}
		return SQLite, withBusyTimeout(path), nil
	case strings.HasPrefix(lower, "file:"):
		return SQLite, withBusyTimeout(url), nil
	case strings.Contains(url, "=") && !strings.Contains(url, "://"):
		return Postgres, url, nil
	}

	return Dialect{}, "", errors.Wrapf(ErrUnsupportedURL, "%q", redact(url))
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout
	}
	return dsn + "?" + sqliteBusyTimeout
}

// redact drops credentials from a URL-shaped string for error messages.
func redact(url string) string {
	scheme := strings.Index(url, "://")
	at := strings.LastIndex(url, "@")
	if scheme < 0 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
