package restive

import "context"

// Operation identifies one of the six standard resource operations, or
// a custom handler. Operations are resolved once at registration time;
// the pipeline never re-interprets options per request.
type Operation int

const (
	OpCustom Operation = iota
	OpList
	OpGet
	OpCreate
	OpReplace
	OpPatch
	OpRemove
)

func (op Operation) String() string {
	switch op {
	case OpList:
		return "list"
	case OpGet:
		return "get"
	case OpCreate:
		return "create"
	case OpReplace:
		return "replace"
	case OpPatch:
		return "patch"
	case OpRemove:
		return "remove"
	default:
		return "custom"
	}
}

// HandlerFunc is the signature of an endpoint handler. Handlers return
// either a Response (typically from Success/Created/Fail/Error) or an
// error; errors of type *APIError control the response status, all
// others become a generic 500.
type HandlerFunc func(ctx context.Context, rc *RequestContext) (*Response, error)

// EndpointAction binds a handler and its auth policy to one
// (route, verb) pair. AuthRequired and RequiredRoles inherit the
// route's defaults when unset. Actions are constructed during route
// registration and never mutated afterwards.
type EndpointAction struct {
	Handler       HandlerFunc
	AuthRequired  *bool
	RequiredRoles []string

	// Docs is an optional schema payload included in documentation
	// export.
	Docs interface{}

	op Operation
}

// Operation reports which standard operation this action implements,
// or OpCustom for hand-written handlers.
func (e *EndpointAction) Operation() Operation { return e.op }

// Endpoints maps HTTP methods (http.MethodGet and friends) to the
// action serving them on a route.
type Endpoints map[string]*EndpointAction

// Bool is a convenience for populating optional boolean overrides such
// as EndpointAction.AuthRequired.
func Bool(v bool) *bool { return &v }
