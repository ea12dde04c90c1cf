package restive

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// RouteOptions carries per-route defaults. An action inherits
// AuthRequired and RequiredRoles unless it overrides them itself.
type RouteOptions struct {
	AuthRequired  bool
	RequiredRoles []string

	// Hidden excludes the route from documentation export.
	Hidden bool
}

// Route is a URL path template with one EndpointAction per HTTP verb.
// Routes are created at registration time and immutable afterwards.
type Route struct {
	Path    string
	Options RouteOptions

	actions map[string]*EndpointAction
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodHead:    true,
}

func newRoute(path string, opts RouteOptions, endpoints Endpoints) (*Route, error) {
	route := &Route{
		Path:    strings.Trim(path, "/"),
		Options: opts,
		actions: map[string]*EndpointAction{},
	}

	for method, action := range endpoints {
		method = strings.ToUpper(method)
		if !knownMethods[method] {
			return nil, errors.Errorf("unsupported HTTP method '%s'", method)
		}
		if action == nil || action.Handler == nil {
			return nil, errors.Errorf("no handler defined for %s", method)
		}

		route.actions[method] = action
	}

	if len(route.actions) == 0 {
		return nil, errors.New("route defines no endpoints")
	}

	return route, nil
}

// Action returns the action registered for the given HTTP method, or
// nil.
func (r *Route) Action(method string) *EndpointAction {
	return r.actions[strings.ToUpper(method)]
}

// Methods returns the route's registered HTTP methods in sorted order.
func (r *Route) Methods() []string {
	out := make([]string, 0, len(r.actions))
	for method := range r.actions {
		out = append(out, method)
	}
	sort.Strings(out)

	return out
}

func (r *Route) authRequired(a *EndpointAction) bool {
	if a.AuthRequired != nil {
		return *a.AuthRequired
	}
	return r.Options.AuthRequired
}

func (r *Route) requiredRoles(a *EndpointAction) []string {
	if a.RequiredRoles != nil {
		return a.RequiredRoles
	}
	return r.Options.RequiredRoles
}

var pathParamExpr = regexp.MustCompile(`:(\w+)`)

// muxTemplate rewrites ':param' path segments into the '{param}' form
// the router expects.
func muxTemplate(path string) string {
	return pathParamExpr.ReplaceAllString(path, "{$1}")
}
