package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// APIError is returned for any non-2xx response from the backend or from a
// pre-signed upload target.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
}

// errorBody is the shape the backend uses for failures. Either field may be set.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// maxErrorBody caps how much of a failed response is read looking for detail.
const maxErrorBody = 64 << 10

// newAPIError builds an APIError from a failed response. The detail comes from
// the JSON error or message field when the response declares a JSON body,
// otherwise fallback is used.
func newAPIError(op string, resp *http.Response, fallback string) *APIError {
	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Message: fallback}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return apiErr
	}
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return apiErr
	}
	switch {
	case body.Error != "":
		apiErr.Message = body.Error
	case body.Message != "":
		apiErr.Message = body.Message
	}
	return apiErr
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
