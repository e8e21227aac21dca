// Copyright 2024-2026 Aiku AI

package bluebubbles

import (
	"errors"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrMissingCredentials is returned when the host has no BlueBubbles
// credentials stored.
var ErrMissingCredentials = errors.New("no credentials got returned")

// Error kinds an *APIError can be matched against with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrPermissions    = errors.New("permissions error")
	ErrTransport      = errors.New("bluebubbles error")
)

const (
	authenticationMessage = "Authentication Error: The BlueBubbles credentials are not valid!"
	permissionsMessage    = "Permissions Error: Credentials are not authorized to access this resource!"
)

// APIError is the normalized error produced for a failed request.
type APIError struct {
	// Kind is one of ErrValidation, ErrAuthentication, ErrPermissions or
	// ErrTransport.
	Kind error
	// StatusCode is zero when the request never produced a response.
	StatusCode int
	Message    string
	// Body is the raw response body, if any.
	Body []byte
	Err  error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return e.Kind == target
}

// Details returns the human-readable error list contained in the response
// body.
func (e *APIError) Details() []string {
	return ParseErrors(e.Body)
}

// mapRequestError converts a transport error into an *APIError.
func mapRequestError(err error) *APIError {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return &APIError{
			Kind:    ErrTransport,
			Message: "BlueBubbles Error: " + err.Error(),
			Err:     err,
		}
	}

	apiErr := &APIError{
		StatusCode: httpErr.StatusCode,
		Body:       httpErr.Body,
		Err:        err,
	}
	switch httpErr.StatusCode {
	case http.StatusBadRequest:
		apiErr.Kind = ErrValidation
		apiErr.Message = "Validation Error: " + validationMessage(httpErr.Body)
	case http.StatusUnauthorized:
		apiErr.Kind = ErrAuthentication
		apiErr.Message = authenticationMessage
	case http.StatusForbidden:
		apiErr.Kind = ErrPermissions
		apiErr.Message = permissionsMessage
	default:
		apiErr.Kind = ErrTransport
		apiErr.Message = "BlueBubbles Error: " + err.Error()
	}
	return apiErr
}

// validationMessage extracts error.message, then message, from a 400 body.
func validationMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return "Unknown"
	}
	for _, path := range []string{"error.message", "message"} {
		if res := gjson.GetBytes(body, path); res.Exists() && res.Type != gjson.Null {
			return res.String()
		}
	}
	return "Unknown"
}
