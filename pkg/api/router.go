package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ssargent/usersvc/pkg/wire"
)

// Router maps a framed request onto a route and its raw id segment.
type Router interface {
	Route(req *wire.Request) (Route, string)
}

// NewRouter returns the prefix router in legacy mode and the template router
// otherwise.
func NewRouter(legacy bool) Router {
	if legacy {
		return PrefixRouter{}
	}
	return NewTemplateRouter()
}

// prefixRoutes are tried in order against the start of the raw request.
// "GET /users" must come before "GET /user".
var prefixRoutes = []struct {
	prefix string
	route  Route
}{
	{"GET /users", RouteList},
	{"POST /user", RouteCreate},
	{"GET /user", RouteRead},
	{"PUT /user", RouteUpdate},
	{"DELETE /user", RouteDelete},
}

// PrefixRouter matches literal method+path prefixes, first match wins.
// "GET /users/anything" lists; "GET /user" with no id reads an empty id.
type PrefixRouter struct{}

// Route implements Router.
func (PrefixRouter) Route(req *wire.Request) (Route, string) {
	for _, p := range prefixRoutes {
		if strings.HasPrefix(req.Raw, p.prefix) {
			return p.route, wire.ExtractID(req.Path)
		}
	}
	return RouteNotFound, ""
}

// TemplateRouter matches exact path templates with chi. Query strings and a
// trailing slash are ignored; a known path with the wrong method is not
// found.
type TemplateRouter struct {
	mux *chi.Mux
}

type routeMatch struct {
	route Route
	id    string
}

type matchKey struct{}

// NewTemplateRouter builds the route table.
func NewTemplateRouter() *TemplateRouter {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)

	r.Get("/users", capture(RouteList))
	r.Post("/user", capture(RouteCreate))
	r.Get("/user/{id}", capture(RouteRead))
	r.Put("/user/{id}", capture(RouteUpdate))
	r.Delete("/user/{id}", capture(RouteDelete))

	r.NotFound(capture(RouteNotFound))
	r.MethodNotAllowed(capture(RouteNotFound))

	return &TemplateRouter{mux: r}
}

func capture(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m, ok := r.Context().Value(matchKey{}).(*routeMatch); ok {
			m.route = route
			m.id = chi.URLParam(r, "id")
		}
	}
}

// Route implements Router.
func (t *TemplateRouter) Route(req *wire.Request) (Route, string) {
	if req.Method == "" || req.Path == "" {
		return RouteNotFound, ""
	}

	m := &routeMatch{}
	ctx := context.WithValue(context.Background(), matchKey{}, m)
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.Path, nil)
	if err != nil {
		return RouteNotFound, ""
	}

	t.mux.ServeHTTP(discardWriter{}, hr)
	return m.route, m.id
}

// discardWriter satisfies http.ResponseWriter for routing-only dispatch.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (discardWriter) WriteHeader(int)             {}
