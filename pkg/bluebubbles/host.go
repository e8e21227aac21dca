// Copyright 2024-2026 Aiku AI

package bluebubbles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CredentialsName is the name under which hosts store the BlueBubbles server
// credentials.
const CredentialsName = "BlueBubblesCredentials"

// Credentials holds the connection details for a BlueBubbles server.
type Credentials struct {
	ServerURL string `json:"server_url" yaml:"server_url"`
	Password  string `json:"password" yaml:"password"`
}

// Host is the capability set a dispatcher needs from its environment: named
// credential lookup and an HTTP transport.
type Host interface {
	// GetCredentials returns the credentials stored under name, or nil if
	// there are none.
	GetCredentials(ctx context.Context, name string) (*Credentials, error)
	// HTTPRequest performs the call described by opts. Non-2xx responses
	// must be reported as *HTTPError so the status can be mapped.
	HTTPRequest(ctx context.Context, opts *RequestOptions) (*Response, error)
}

// RequestOptions is the fully built request handed to the transport. It is
// constructed per call and never shared with the caller's Request.
type RequestOptions struct {
	Method   string
	URL      string
	Headers  http.Header
	Query    url.Values
	Body     any            // nil when the request has no body
	FormData map[string]any // nil when there is no form data
	JSON     bool
	Timeout  time.Duration

	InsecureSkipVerify bool
}

// FullURL returns the URL with the encoded query string appended.
func (o *RequestOptions) FullURL() string {
	if len(o.Query) == 0 {
		return o.URL
	}
	return o.URL + "?" + o.Query.Encode()
}

// Response is a fully buffered transport response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Data holds the decoded JSON body when the request asked for JSON.
	Data any
}

// Decode unmarshals the raw response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HTTPError is returned by transports for responses with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}
