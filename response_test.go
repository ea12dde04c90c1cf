package restive

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWrapsPlainBodies(t *testing.T) {
	assert := assert.New(t)

	resp := &Response{Body: map[string]string{"name": "a"}}
	resp.normalize()

	assert.Equal(http.StatusOK, resp.StatusCode)
	env, ok := resp.Body.(Envelope)
	assert.True(ok)
	assert.Equal(StatusSuccess, env.Status)

	resp = Success("data")
	resp.normalize()
	env = resp.Body.(Envelope)
	assert.Equal(StatusSuccess, env.Status)
	assert.Equal("data", env.Data)
}

func TestNormalizeKeepsEnvelopes(t *testing.T) {
	resp := Fail(http.StatusNoContent, "Item not found")
	resp.normalize()

	env := resp.Body.(Envelope)
	assert.Equal(t, StatusFail, env.Status)
	assert.Equal(t, "Item not found", env.Message)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestNormalizeFailureStatusWithPlainBody(t *testing.T) {
	resp := &Response{StatusCode: http.StatusBadRequest, Body: "oops"}
	resp.normalize()

	env := resp.Body.(Envelope)
	assert.Equal(t, StatusError, env.Status)
	assert.Nil(t, env.Data)
}

func TestAddHeaderOverride(t *testing.T) {
	resp := Success(nil).AddHeader("Content-Type", "text/plain")
	assert.Equal(t, "text/plain", resp.Headers.Get("Content-Type"))
}
