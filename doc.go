// Package restive is a declarative REST-API layer: it maps named
// resources and custom endpoints onto HTTP verbs, with pluggable
// authentication and automatic request and response shaping.
//
// The package is only concerned with route resolution and request
// execution. An API instance builds a dispatch table keyed by path and
// method from AddRoute and AddResource calls, and every matched
// request runs a fixed pipeline: CORS preflight, authentication, role
// check, handler invocation, response normalization, and error
// mapping. The HTTP transport (gorilla/mux plus net/http), the data
// store behind collections, and the identity backends are external
// collaborators reached through small interfaces, so the engine
// compiles and tests independently of any particular backend.
package restive
