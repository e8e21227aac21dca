// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bluebubbles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is used when a Request does not set one.
const DefaultTimeout = 5 * time.Minute

const redacted = "<redacted>"

// Request describes a single BlueBubbles API call. The dispatcher never
// modifies it.
type Request struct {
	// Method defaults to GET.
	Method   string
	Endpoint string
	Query    url.Values
	Headers  http.Header
	Body     any
	FormData map[string]any
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// RawResponse skips JSON decoding of the response body.
	RawResponse bool
}

// Dispatcher builds requests and sends them through a Host.
type Dispatcher struct {
	log zerolog.Logger
}

// NewDispatcher creates a dispatcher that reports built requests to log at
// debug level. Pass nil to disable logging.
func NewDispatcher(log *zerolog.Logger) *Dispatcher {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Dispatcher{log: log.With().Str("component", "bb_dispatcher").Logger()}
}

// Request sends req through host using the stored BlueBubbles credentials.
// The response is returned as the host produced it.
func (d *Dispatcher) Request(ctx context.Context, host Host, req Request) (*Response, error) {
	opts, err := d.Build(ctx, host, req)
	if err != nil {
		return nil, err
	}

	d.log.Debug().
		Str("method", opts.Method).
		Str("url", opts.URL).
		Str("query", redactQuery(opts.Query).Encode()).
		Bool("has_body", opts.Body != nil).
		Bool("has_form_data", opts.FormData != nil).
		Dur("timeout", opts.Timeout).
		Bool("insecure_skip_verify", opts.InsecureSkipVerify).
		Msg("Sending BlueBubbles request")

	resp, err := host.HTTPRequest(ctx, opts)
	if err != nil {
		apiErr := mapRequestError(err)
		d.log.Debug().Err(err).
			Int("status_code", apiErr.StatusCode).
			Str("url", opts.URL).
			Msg("BlueBubbles request failed")
		return nil, apiErr
	}
	return resp, nil
}

// Build resolves credentials and constructs the transport options for req
// without sending anything.
func (d *Dispatcher) Build(ctx context.Context, host Host, req Request) (*RequestOptions, error) {
	creds, err := host.GetCredentials(ctx, CredentialsName)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	if creds == nil {
		return nil, ErrMissingCredentials
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	query := cloneValues(req.Query)
	if !query.Has("password") {
		query.Set("password", creds.Password)
	}

	var formData map[string]any
	if len(req.FormData) > 0 {
		formData = make(map[string]any, len(req.FormData))
		for k, v := range req.FormData {
			formData[k] = v
		}
	}

	headers := req.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	if method == http.MethodPost && formData == nil && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	if method != http.MethodDelete && headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	endpoint := strings.TrimPrefix(req.Endpoint, "/")

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := &RequestOptions{
		Method:             method,
		URL:                SanitizeHost(creds.ServerURL) + "/" + endpoint,
		Headers:            headers,
		Query:              query,
		FormData:           formData,
		JSON:               !req.RawResponse,
		Timeout:            timeout,
		InsecureSkipVerify: req.InsecureSkipVerify,
	}
	if !isEmptyBody(req.Body) {
		opts.Body = req.Body
	}
	return opts, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func redactQuery(q url.Values) url.Values {
	if !q.Has("password") {
		return q
	}
	out := cloneValues(q)
	out.Set("password", redacted)
	return out
}

// isEmptyBody reports whether body carries nothing worth sending.
func isEmptyBody(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case json.RawMessage:
		trimmed := strings.TrimSpace(string(b))
		return trimmed == "" || trimmed == "{}" || trimmed == "null"
	case []byte:
		return len(b) == 0
	case string:
		return b == ""
	}
	rv := reflect.ValueOf(body)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
