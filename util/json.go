package util

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ReadJSON decodes the contents of a request body into data, closing
// the reader when done. An empty body is not an error; data is left
// untouched.
func ReadJSON(r io.ReadCloser, data interface{}) error {
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}

	if len(payload) == 0 {
		return nil
	}

	return errors.Wrap(json.Unmarshal(payload, data), "parsing request body")
}
