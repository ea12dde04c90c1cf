package restive

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// SchemaMeta configures documentation export: top-level metadata,
// shared definitions, and extra static paths merged into the walked
// route registry.
type SchemaMeta struct {
	Meta        map[string]interface{}
	Definitions map[string]interface{}
	Paths       map[string]interface{}
}

// AddSchema registers an unauthenticated GET endpoint that walks the
// route registry and emits a path→method→schema document. Hidden
// routes, the schema path itself, and the built-in login, logout, and
// user paths are excluded. Path parameters are rewritten from ':name'
// to '{name}'.
func (a *API) AddSchema(path string, meta SchemaMeta) error {
	err := a.AddRoute(path, RouteOptions{Hidden: true}, Endpoints{
		http.MethodGet: {Handler: a.schemaHandler(strings.Trim(path, "/"), meta)},
	})

	return errors.Wrap(err, "adding schema route")
}

func (a *API) schemaHandler(schemaPath string, meta SchemaMeta) HandlerFunc {
	return func(ctx context.Context, rc *RequestContext) (*Response, error) {
		doc := map[string]interface{}{}
		for key, val := range meta.Meta {
			doc[key] = val
		}

		paths := map[string]interface{}{}
		for _, route := range a.routes {
			if route.Options.Hidden ||
				route.Path == schemaPath ||
				route.Path == "login" ||
				route.Path == "logout" ||
				strings.Contains(route.Path, "users") {
				continue
			}

			entry := map[string]interface{}{}
			for _, method := range route.Methods() {
				if method == http.MethodOptions {
					continue
				}
				if action := route.Action(method); action.Docs != nil {
					entry[strings.ToLower(method)] = action.Docs
				}
			}

			paths["/"+muxTemplate(route.Path)] = entry
		}

		for path, val := range meta.Paths {
			if _, ok := paths[path]; !ok {
				paths[path] = val
			}
		}

		doc["paths"] = paths
		if len(meta.Definitions) > 0 {
			doc["definitions"] = meta.Definitions
		}

		return Success(doc), nil
	}
}
