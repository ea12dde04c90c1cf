package restive

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/negroni"
)

// API is the root dispatcher for a declarative REST interface. It owns
// the configuration, the route registry, and the registration
// operations, and produces the http.Handler that serves them.
//
// Registration (AddRoute, AddResource, and friends) happens during a
// startup phase; the registry freezes at the first call to Handler or
// Run and cannot change afterwards, so no locks guard it on the hot
// path.
type API struct {
	opts        *Options
	basePath    string
	headers     map[string]string
	corsHeaders map[string]string
	router      *mux.Router
	routes      []*Route
	seen        map[string]struct{}
	frozen      bool
}

// New builds an API from the given options, validating and defaulting
// them. When default auth is enabled the built-in login and logout
// routes are registered immediately.
func New(opts *Options) (*API, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid api options")
	}

	a := &API{
		opts:     opts,
		basePath: normalizeBasePath(opts.APIPath, opts.Version),
		router:   mux.NewRouter(),
		seen:     map[string]struct{}{},
	}

	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.writeResponse(rw, Error(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)))
	})
	a.router.NotFoundHandler = http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.writeResponse(rw, Error(http.StatusNotFound, http.StatusText(http.StatusNotFound)))
	})

	a.headers = map[string]string{}
	for key, val := range opts.DefaultHeaders {
		a.headers[key] = val
	}

	if opts.corsEnabled() {
		a.corsHeaders = map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Headers": "Origin, X-Requested-With, Content-Type, Accept",
		}
		if opts.UseDefaultAuth {
			a.corsHeaders["Access-Control-Allow-Headers"] += fmt.Sprintf(", %s, %s",
				opts.Auth.UserHeader, opts.Auth.TokenHeader)
		}
		for key, val := range a.corsHeaders {
			a.headers[key] = val
		}
	}

	if opts.UseDefaultAuth {
		if err := a.addAuthRoutes(); err != nil {
			return nil, errors.Wrap(err, "registering built-in auth routes")
		}
	}

	return a, nil
}

// BasePath returns the normalized path prefix, version segment
// included, under which every route is registered.
func (a *API) BasePath() string { return a.basePath }

// Routes returns the route registry in registration order. The order
// only affects documentation export; dispatch is keyed by exact path
// and method.
func (a *API) Routes() []*Route { return a.routes }

func normalizeBasePath(apiPath, version string) string {
	path := strings.TrimPrefix(apiPath, "/")
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	if version != "" {
		path += version + "/"
	}

	return path
}

// AddRoute registers endpoints for the given HTTP methods at the given
// path, which is appended to the API's base path and may contain
// ':name' parameters. Registering a (path, method) pair twice fails
// with a DuplicateRouteError; registration errors are fatal and should
// abort startup.
func (a *API) AddRoute(path string, opts RouteOptions, endpoints Endpoints) error {
	if a.frozen {
		return errors.Errorf("cannot register '%s' after the route registry is frozen", path)
	}

	route, err := newRoute(path, opts, endpoints)
	if err != nil {
		return errors.Wrapf(err, "invalid route '%s'", path)
	}

	for _, method := range route.Methods() {
		if _, ok := a.seen[method+" "+route.Path]; ok {
			return &DuplicateRouteError{Path: route.Path, Method: method}
		}
	}
	for _, method := range route.Methods() {
		a.seen[method+" "+route.Path] = struct{}{}
	}

	full := "/" + a.basePath + muxTemplate(route.Path)
	a.router.HandleFunc(full, a.makeHandler(route)).Methods(route.Methods()...)
	a.routes = append(a.routes, route)

	grip.Debugln("added route for:", full)

	return nil
}

// Handler freezes the route registry and returns the API wrapped in
// its middleware stack, for integration with any http server.
func (a *API) Handler() (http.Handler, error) {
	a.freeze()

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(NewAppLogger())
	n.UseHandler(a.router)

	return n, nil
}

func (a *API) freeze() {
	if a.frozen {
		return
	}

	if a.opts.corsEnabled() {
		a.router.PathPrefix("/" + a.basePath).
			Methods(http.MethodOptions).
			HandlerFunc(a.preflightHandler)
	}

	a.frozen = true
}

// Run serves the API on the configured host and port until the context
// is cancelled.
func (a *API) Run(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.opts.Host, a.opts.Port),
		Handler:           handler,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      time.Minute,
	}

	catcher := grip.NewBasicCatcher()
	serviceWait := make(chan struct{})
	go func() {
		defer recovery.LogStackTraceAndContinue("api service")

		grip.Noticef("starting api on: %s:%d", a.opts.Host, a.opts.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			catcher.Add(err)
		}
	}()

	go func() {
		defer recovery.LogStackTraceAndContinue("server shutdown")

		<-ctx.Done()
		catcher.Add(srv.Shutdown(context.Background()))
		close(serviceWait)
	}()

	<-serviceWait

	return catcher.Resolve()
}
