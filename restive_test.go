package restive

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(ctx context.Context, rc *RequestContext) (*Response, error) {
	return Success("ok"), nil
}

func TestBasePathNormalization(t *testing.T) {
	assert := assert.New(t)

	for _, test := range []struct {
		apiPath  string
		version  string
		expected string
	}{
		{"", "", "api/"},
		{"api/", "", "api/"},
		{"/api", "", "api/"},
		{"/api/", "v1", "api/v1/"},
		{"rest", "v2", "rest/v2/"},
	} {
		api, err := New(&Options{APIPath: test.apiPath, Version: test.version})
		require.NoError(t, err)
		assert.Equal(test.expected, api.BasePath())
	}
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(&Options{Port: 100000})
	assert.Error(t, err)

	_, err = New(&Options{Version: "v1/extra"})
	assert.Error(t, err)

	// default auth needs its collaborators
	_, err = New(&Options{UseDefaultAuth: true})
	assert.Error(t, err)
}

func TestDuplicateRouteRegistration(t *testing.T) {
	assert := assert.New(t)

	api, err := New(nil)
	require.NoError(t, err)

	endpoints := Endpoints{http.MethodGet: {Handler: okHandler}}
	require.NoError(t, api.AddRoute("widgets", RouteOptions{}, endpoints))

	err = api.AddRoute("widgets", RouteOptions{}, Endpoints{http.MethodGet: {Handler: okHandler}})
	assert.Error(err)
	dup, ok := err.(*DuplicateRouteError)
	require.True(t, ok)
	assert.Equal("widgets", dup.Path)
	assert.Equal(http.MethodGet, dup.Method)

	// a different verb on the same path is fine
	assert.NoError(api.AddRoute("widgets", RouteOptions{}, Endpoints{http.MethodPost: {Handler: okHandler}}))
}

func TestRouteValidation(t *testing.T) {
	api, err := New(nil)
	require.NoError(t, err)

	assert.Error(t, api.AddRoute("bad", RouteOptions{}, Endpoints{}))
	assert.Error(t, api.AddRoute("bad", RouteOptions{}, Endpoints{http.MethodGet: nil}))
	assert.Error(t, api.AddRoute("bad", RouteOptions{}, Endpoints{"TRACE": {Handler: okHandler}}))
}

func TestRegistrationAfterFreezeFails(t *testing.T) {
	api, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, api.AddRoute("widgets", RouteOptions{}, Endpoints{http.MethodGet: {Handler: okHandler}}))

	_, err = api.Handler()
	require.NoError(t, err)

	assert.Error(t, api.AddRoute("gadgets", RouteOptions{}, Endpoints{http.MethodGet: {Handler: okHandler}}))
}

func TestMuxTemplateRewritesParams(t *testing.T) {
	assert.Equal(t, "widgets/{id}", muxTemplate("widgets/:id"))
	assert.Equal(t, "a/{b}/c/{d}", muxTemplate("a/:b/c/:d"))
	assert.Equal(t, "plain", muxTemplate("plain"))
}

func TestDefaultAuthWidensCORSHeaders(t *testing.T) {
	api, err := New(&Options{
		UseDefaultAuth: true,
		Users:          stubUserStore{},
		Passwords:      stubPasswords{},
	})
	require.NoError(t, err)

	assert.Contains(t, api.headers["Access-Control-Allow-Headers"], "X-User-Id")
	assert.Contains(t, api.headers["Access-Control-Allow-Headers"], "X-Auth-Token")

	// login and logout are registered up front
	assert.Len(t, api.Routes(), 2)
}
