package restive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// makeHandler builds the per-request pipeline for a route: CORS
// preflight short-circuit, principal resolution, auth and role checks,
// handler invocation, and response normalization. Failures at any step
// become a normalized envelope; nothing escapes to the router
// unwrapped.
func (a *API) makeHandler(route *Route) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method == http.MethodOptions && a.opts.corsEnabled() && route.Action(r.Method) == nil {
			a.preflightHandler(rw, r)
			return
		}

		action := route.Action(r.Method)
		if action == nil {
			// unreachable through the router, which filters methods
			a.writeResponse(rw, Error(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)))
			return
		}

		rc, err := newRequestContext(r)
		if err != nil {
			a.writeResponse(rw, Fail(http.StatusBadRequest, "malformed request body"))
			return
		}

		user, err := a.resolveUser(ctx, rc)
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "problem resolving user",
			"path":    r.URL.Path,
		}))
		rc.User = user

		if apiErr := a.checkAuthAndRole(ctx, route, action, rc); apiErr != nil {
			a.writeResponse(rw, Error(apiErr.StatusCode, apiErr.Message))
			return
		}

		resp := a.invoke(ctx, action, rc)
		if rc.response != nil {
			resp = rc.response
		}

		a.writeResponse(rw, resp)
	}
}

// invoke runs the handler, containing panics and converting errors
// into responses. An uncaught panic becomes a generic 500.
func (a *API) invoke(ctx context.Context, action *EndpointAction, rc *RequestContext) (resp *Response) {
	defer func() {
		if p := recover(); p != nil {
			grip.Critical(message.Fields{
				"message":   "panic in endpoint handler",
				"operation": action.op.String(),
				"path":      rc.Request.URL.Path,
				"panic":     fmt.Sprintf("%v", p),
			})
			resp = Error(http.StatusInternalServerError, "Internal server error")
		}
	}()

	out, err := action.Handler(ctx, rc)
	if err != nil {
		return a.responseForError(err, rc)
	}
	if out == nil {
		return Success(nil)
	}

	return out
}

func (a *API) responseForError(err error, rc *RequestContext) *Response {
	switch e := errors.Cause(err).(type) {
	case *APIError:
		return Error(e.StatusCode, e.Message)
	case APIError:
		return Error(e.StatusCode, e.Message)
	}

	grip.Error(message.WrapError(err, message.Fields{
		"message": "endpoint handler failed",
		"path":    rc.Request.URL.Path,
	}))

	return Error(http.StatusInternalServerError, "Internal server error")
}

// preflightHandler answers OPTIONS requests when CORS is enabled,
// before auth or handlers run. The response carries only the CORS
// headers, unless a custom options handler is configured.
func (a *API) preflightHandler(rw http.ResponseWriter, r *http.Request) {
	if custom := a.opts.DefaultOptionsHandler; custom != nil {
		rc := &RequestContext{
			Request:     r,
			URLParams:   map[string]string{},
			QueryParams: r.URL.Query(),
			BodyParams:  Record{},
		}
		a.writeResponse(rw, a.invoke(r.Context(), &EndpointAction{Handler: custom}, rc))
		return
	}

	for key, val := range a.corsHeaders {
		rw.Header().Set(key, val)
	}
	rw.WriteHeader(http.StatusOK)
}

// writeResponse normalizes the response and hands it to the router's
// response writer, merging the API default headers with any
// handler-specified ones; the handler wins on conflict.
func (a *API) writeResponse(rw http.ResponseWriter, resp *Response) {
	resp.normalize()

	for key, val := range a.headers {
		rw.Header().Set(key, val)
	}
	for key, vals := range resp.Headers {
		rw.Header().Del(key)
		for _, val := range vals {
			rw.Header().Add(key, val)
		}
	}

	var payload []byte
	var err error
	if resp.Body != nil {
		if a.opts.PrettyJSON {
			payload, err = json.MarshalIndent(resp.Body, "", "  ")
		} else {
			payload, err = json.Marshal(resp.Body)
		}
		if err != nil {
			grip.Error(message.WrapError(err, message.Fields{
				"message": "problem marshalling response body",
			}))
			rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
			rw.WriteHeader(http.StatusInternalServerError)
			_, _ = rw.Write([]byte("Internal server error"))
			return
		}
	}

	rw.WriteHeader(resp.StatusCode)
	if len(payload) > 0 {
		_, err = rw.Write(payload)
		grip.Error(message.WrapError(err, message.Fields{
			"message": "problem writing response body",
		}))
	}
}
