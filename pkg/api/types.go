package api

import (
	"time"

	"github.com/ssargent/usersvc/pkg/wire"
)

// Fixed confirmation bodies.
const (
	bodyUserCreated = "User created"
	bodyUserUpdated = "User updated"
	bodyUserDeleted = "User deleted"
)

// Route identifies the operation a request was dispatched to.
type Route int

const (
	RouteNotFound Route = iota
	RouteList
	RouteCreate
	RouteRead
	RouteUpdate
	RouteDelete
)

func (r Route) String() string {
	switch r {
	case RouteList:
		return "list"
	case RouteCreate:
		return "create"
	case RouteRead:
		return "read"
	case RouteUpdate:
		return "update"
	case RouteDelete:
		return "delete"
	default:
		return "not_found"
	}
}

// StatusPolicy decides how store failures are reported.
type StatusPolicy int

const (
	// PolicyStrict reports statement failures as 500 and reserves 404 for
	// "no row matched".
	PolicyStrict StatusPolicy = iota

	// PolicyLegacy reports statement failures of list, read, update and
	// delete as 404, and a zero-row update as success.
	PolicyLegacy
)

func (p StatusPolicy) String() string {
	if p == PolicyLegacy {
		return "legacy"
	}
	return "strict"
}

// ServerConfig holds configuration for the user server
type ServerConfig struct {
	Addr           string
	MaxConnections int           // concurrent connections; 1 serves strictly one at a time
	BufferSize     int           // size of the single read that frames a request
	IOTimeout      time.Duration // per-connection deadline; 0 means none
	Legacy         bool          // prefix routing and legacy status mapping
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.MaxConnections < 1 {
		c.MaxConnections = 1
	}
	if c.BufferSize < 1 {
		c.BufferSize = wire.DefaultBufferSize
	}
	return c
}
