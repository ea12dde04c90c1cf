package restive

import (
	"encoding/json"
	"net/http"
)

// Envelope statuses. Every response body produced by the pipeline is an
// Envelope with exactly one of the success/fail/error shapes.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the normalized response body: either {status:"success",
// data:...} or {status:"fail"|"error", message:...}.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// MarshalJSON omits the data key only when data is unset; empty
// collections still serialize as "data": [].
func (e Envelope) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{"status": e.Status}
	if e.Data != nil {
		doc["data"] = e.Data
	}
	if e.Message != "" {
		doc["message"] = e.Message
	}

	return json.Marshal(doc)
}

// Response is the normalized (status, headers, body) triple handed back
// to the router. Handlers usually build one through the constructors
// below rather than populating it directly.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       interface{}
}

// AddHeader sets a response header, overriding the API default of the
// same name.
func (r *Response) AddHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = http.Header{}
	}
	r.Headers.Set(key, value)

	return r
}

// Success returns a 200 response wrapping data in a success envelope.
func Success(data interface{}) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Body:       Envelope{Status: StatusSuccess, Data: data},
	}
}

// Created returns a 201 response wrapping data in a success envelope.
func Created(data interface{}) *Response {
	return &Response{
		StatusCode: http.StatusCreated,
		Body:       Envelope{Status: StatusSuccess, Data: data},
	}
}

// Fail returns a fail envelope with the given status code. Fail is for
// expected conditions (missing entities, writes that had no effect).
func Fail(status int, message string) *Response {
	return &Response{
		StatusCode: status,
		Body:       Envelope{Status: StatusFail, Message: message},
	}
}

// Error returns an error envelope with the given status code. Error is
// for faults rather than expected misses.
func Error(status int, message string) *Response {
	return &Response{
		StatusCode: status,
		Body:       Envelope{Status: StatusError, Message: message},
	}
}

// normalize fills defaults and guarantees the body is an Envelope. A
// plain (non-envelope) body is implicitly a success payload; responses
// with a failure status keep their body only if it is already an
// envelope.
func (r *Response) normalize() {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}

	switch r.Body.(type) {
	case nil, Envelope, *Envelope:
		return
	}

	if r.StatusCode < http.StatusBadRequest {
		r.Body = Envelope{Status: StatusSuccess, Data: r.Body}
	} else {
		r.Body = Envelope{Status: StatusError, Message: http.StatusText(r.StatusCode)}
	}
}
