package restive

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/restive-dev/restive/util"
)

// RequestContext carries the per-request state handed to endpoint
// handlers: parsed URL, query and body parameters, and the principal
// resolved by the auth step (nil for anonymous requests). A context is
// created when a request arrives and discarded when the response is
// written; it is never shared between requests.
type RequestContext struct {
	Request     *http.Request
	URLParams   map[string]string
	QueryParams url.Values
	BodyParams  Record
	User        *Principal

	response *Response
}

func newRequestContext(r *http.Request) (*RequestContext, error) {
	rc := &RequestContext{
		Request:     r,
		URLParams:   mux.Vars(r),
		QueryParams: r.URL.Query(),
		BodyParams:  Record{},
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		body := util.NewRequestReader(r)
		if err := util.ReadJSON(body, &rc.BodyParams); err != nil {
			return nil, err
		}
	}

	return rc, nil
}

// UserID returns the id of the resolved principal, or the empty string
// for anonymous requests.
func (rc *RequestContext) UserID() string {
	if rc.User == nil {
		return ""
	}
	return rc.User.ID
}

// SetResponse installs a low-level response override. When set, the
// pipeline writes it instead of the handler's return value.
func (rc *RequestContext) SetResponse(resp *Response) {
	rc.response = resp
}
