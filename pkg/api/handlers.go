package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssargent/usersvc/pkg/model"
	"github.com/ssargent/usersvc/pkg/store"
	"github.com/ssargent/usersvc/pkg/wire"
)

// Handlers implements the five user operations against a store gateway.
//
// Identifiers and bodies are validated before a connection is acquired, so
// a malformed request never reaches the store. Failures are logged through
// the logger carried by the context.
type Handlers struct {
	gateway store.Gateway
	policy  StatusPolicy
	metrics *Metrics
}

// NewHandlers creates the operation handlers.
func NewHandlers(gateway store.Gateway, policy StatusPolicy, metrics *Metrics) *Handlers {
	return &Handlers{
		gateway: gateway,
		policy:  policy,
		metrics: metrics,
	}
}

// Handle dispatches a routed request.
func (h *Handlers) Handle(ctx context.Context, route Route, id string, body []byte) wire.Response {
	switch route {
	case RouteList:
		return h.List(ctx)
	case RouteCreate:
		return h.Create(ctx, body)
	case RouteRead:
		return h.Read(ctx, id)
	case RouteUpdate:
		return h.Update(ctx, id, body)
	case RouteDelete:
		return h.Delete(ctx, id)
	default:
		return wire.NotFound(wire.BodyNotFound)
	}
}

// List returns every user as a JSON array.
func (h *Handlers) List(ctx context.Context) wire.Response {
	conn, ok := h.connect(ctx, "list")
	if !ok {
		return wire.InternalError()
	}
	defer conn.Close()

	start := time.Now()
	users, err := conn.Query(ctx, h.gateway.Statements().List)
	h.metrics.RecordDBOperation("list", err == nil, time.Since(start))
	if err != nil {
		return h.statementFailed(ctx, "list", err)
	}

	body, err := model.EncodeUsers(users)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("encode failed")
		return wire.InternalError()
	}
	return wire.OK(body)
}

// Create inserts the user in the body. The store assigns the id.
func (h *Handlers) Create(ctx context.Context, body []byte) wire.Response {
	user, err := model.DecodeUser(body)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("rejected body")
		return wire.InternalError()
	}

	conn, ok := h.connect(ctx, "create")
	if !ok {
		return wire.InternalError()
	}
	defer conn.Close()

	start := time.Now()
	_, err = conn.Execute(ctx, h.gateway.Statements().Insert, user.Name, user.Email)
	h.metrics.RecordDBOperation("create", err == nil, time.Since(start))
	if err != nil {
		// Insert failures are faults under every policy.
		zerolog.Ctx(ctx).Error().Err(err).Str("operation", "create").Msg("insert failed")
		return wire.InternalError()
	}

	return wire.OK(bodyUserCreated)
}

// Read returns one user as a JSON object.
func (h *Handlers) Read(ctx context.Context, rawID string) wire.Response {
	id, ok := parseID(ctx, rawID)
	if !ok {
		return wire.InternalError()
	}

	conn, ok := h.connect(ctx, "read")
	if !ok {
		return wire.InternalError()
	}
	defer conn.Close()

	start := time.Now()
	users, err := conn.Query(ctx, h.gateway.Statements().Get, id)
	h.metrics.RecordDBOperation("read", err == nil, time.Since(start))
	if err != nil {
		return h.statementFailed(ctx, "read", err)
	}
	if len(users) == 0 {
		return wire.NotFound(wire.BodyUserNotFound)
	}

	body, err := model.EncodeUser(users[0])
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("encode failed")
		return wire.InternalError()
	}
	return wire.OK(body)
}

// Update overwrites name and email of one user.
func (h *Handlers) Update(ctx context.Context, rawID string, body []byte) wire.Response {
	id, ok := parseID(ctx, rawID)
	if !ok {
		return wire.InternalError()
	}

	user, err := model.DecodeUser(body)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("rejected body")
		return wire.InternalError()
	}

	conn, ok := h.connect(ctx, "update")
	if !ok {
		return wire.InternalError()
	}
	defer conn.Close()

	start := time.Now()
	n, err := conn.Execute(ctx, h.gateway.Statements().Update, user.Name, user.Email, id)
	h.metrics.RecordDBOperation("update", err == nil, time.Since(start))
	if err != nil {
		return h.statementFailed(ctx, "update", err)
	}
	if n == 0 && h.policy == PolicyStrict {
		return wire.NotFound(wire.BodyUserNotFound)
	}

	return wire.OK(bodyUserUpdated)
}

// Delete removes one user.
func (h *Handlers) Delete(ctx context.Context, rawID string) wire.Response {
	id, ok := parseID(ctx, rawID)
	if !ok {
		return wire.InternalError()
	}

	conn, ok := h.connect(ctx, "delete")
	if !ok {
		return wire.InternalError()
	}
	defer conn.Close()

	start := time.Now()
	n, err := conn.Execute(ctx, h.gateway.Statements().Delete, id)
	h.metrics.RecordDBOperation("delete", err == nil, time.Since(start))
	if err != nil {
		return h.statementFailed(ctx, "delete", err)
	}
	if n == 0 {
		return wire.NotFound(wire.BodyUserNotFound)
	}

	return wire.OK(bodyUserDeleted)
}

func (h *Handlers) connect(ctx context.Context, op string) (store.Conn, bool) {
	conn, err := h.gateway.Connect(ctx)
	if err != nil {
		h.metrics.RecordDBOperation("connect", false, 0)
		zerolog.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("store unavailable")
		return nil, false
	}
	return conn, true
}

func (h *Handlers) statementFailed(ctx context.Context, op string, err error) wire.Response {
	zerolog.Ctx(ctx).Error().Err(err).Str("operation", op).Str("policy", h.policy.String()).Msg("statement failed")
	if h.policy == PolicyLegacy {
		return wire.NotFound(wire.BodyUserNotFound)
	}
	return wire.InternalError()
}

func parseID(ctx context.Context, raw string) (int32, bool) {
	id, err := wire.ParseID(raw)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("rejected id")
		return 0, false
	}
	return id, true
}
