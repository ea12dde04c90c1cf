package restive

import "fmt"

// APIError is a structured failure that handlers and collaborators can
// return to control the status code and message of the response
// envelope.
type APIError struct {
	StatusCode int    `json:"status"`
	Message    string `json:"error"`
}

func (e APIError) Error() string {
	return e.Message
}

// NewAPIError constructs an APIError with the given status and a
// formatted message.
func NewAPIError(status int, format string, args ...interface{}) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
	}
}

// DuplicateRouteError is returned from route registration when a (path,
// method) pair is already registered. Registration errors are fatal and
// should abort startup; they are never converted into responses.
type DuplicateRouteError struct {
	Path   string
	Method string
}

func (e DuplicateRouteError) Error() string {
	return fmt.Sprintf("route already registered for %s %s", e.Method, e.Path)
}
