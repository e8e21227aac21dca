// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// maxResponseBodySize caps how much of a response body is buffered (64 MB).
const maxResponseBodySize = 64 << 20

// ErrResponseTooLarge is returned when a response body exceeds the transport's
// size limit.
var ErrResponseTooLarge = errors.New("response body too large")

// FormFile is a file part of a multipart form.
type FormFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// HTTPTransport implements the transport half of bluebubbles.Host on top of
// net/http.
type HTTPTransport struct {
	client   *http.Client
	insecure *http.Client
	log      zerolog.Logger

	maxBodySize int64
}

// NewHTTPTransport creates a transport with one client that verifies TLS
// certificates and one that does not.
func NewHTTPTransport(log *zerolog.Logger) *HTTPTransport {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	insecure := http.DefaultTransport.(*http.Transport).Clone()
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	return &HTTPTransport{
		client:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		insecure: &http.Client{Transport: insecure},
		log:      log.With().Str("component", "bb_transport").Logger(),

		maxBodySize: maxResponseBodySize,
	}
}

// HTTPRequest executes opts. Responses outside the 2xx range are returned as
// *bluebubbles.HTTPError with the body attached.
func (t *HTTPTransport) HTTPRequest(ctx context.Context, opts *bluebubbles.RequestOptions) (*bluebubbles.Response, error) {
	if opts == nil {
		return nil, fmt.Errorf("nil request options")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.FullURL(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = opts.Headers.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := t.client
	if opts.InsecureSkipVerify {
		client = t.insecure
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		t.log.Warn().Err(err).Str("method", opts.Method).Str("url", opts.URL).Msg("HTTP request failed")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > t.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, t.maxBodySize, opts.URL)
	}

	t.log.Debug().
		Str("method", opts.Method).
		Str("url", opts.URL).
		Int("status_code", resp.StatusCode).
		Int("body_size", len(data)).
		Dur("duration", time.Since(start)).
		Msg("HTTP request complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &bluebubbles.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       data,
			Message:    fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
		}
	}

	out := &bluebubbles.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}
	if opts.JSON && len(data) > 0 {
		if gjson.ValidBytes(data) {
			if err := json.Unmarshal(data, &out.Data); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
		} else {
			out.Data = string(data)
		}
	}
	return out, nil
}

// encodeBody returns the request body and the content type it implies.
// Form data takes precedence over a body.
func encodeBody(opts *bluebubbles.RequestOptions) (io.Reader, string, error) {
	if opts.FormData != nil {
		return encodeMultipart(opts.FormData)
	}
	switch b := opts.Body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func encodeMultipart(form map[string]any) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := writeFormField(mw, key, form[key]); err != nil {
			return nil, "", fmt.Errorf("failed to encode form field %q: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFormField(mw *multipart.Writer, key string, value any) error {
	switch v := value.(type) {
	case FormFile:
		return writeFormFile(mw, key, &v)
	case *FormFile:
		return writeFormFile(mw, key, v)
	case string:
		return mw.WriteField(key, v)
	case []byte:
		return mw.WriteField(key, string(v))
	case fmt.Stringer:
		return mw.WriteField(key, v.String())
	case bool, int, int64, float64:
		return mw.WriteField(key, fmt.Sprint(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return mw.WriteField(key, string(data))
	}
}

func writeFormFile(mw *multipart.Writer, key string, file *FormFile) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(key), escapeQuotes(file.Name)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
