// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

const testPassword = "hunter2"

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Accept      string
	Body        string
}

// fakeBB is a test helper that wraps an httptest.Server simulating the
// BlueBubbles API. It records calls and provides canned responses.
type fakeBB struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Responses maps "METHOD /path" to a JSON body returned with 200.
	Responses map[string]string
	// Status maps "METHOD /path" to a status code overriding 200.
	Status map[string]int
}

func newFakeBB(t *testing.T) *fakeBB {
	t.Helper()
	f := &fakeBB{
		Responses: map[string]string{
			"GET /api/v1/ping":        `{"status":200,"message":"Ping received!","data":"pong"}`,
			"GET /api/v1/server/info": `{"status":200,"data":{"server_version":"1.9.7","os_version":"14.4","private_api":true}}`,
		},
		Status: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeBB) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, endpointCall{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
		Body:        string(body),
	})
	key := r.Method + " " + r.URL.Path
	resp, hasResp := f.Responses[key]
	status, hasStatus := f.Status[key]
	f.mu.Unlock()

	if r.URL.Query().Get("password") != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": 401,
			"error":  map[string]string{"type": "Authentication Error", "message": "Unauthorized"},
		})
		return
	}
	if !hasStatus {
		status = http.StatusOK
	}
	if !hasResp {
		resp = `{"status":200,"message":"Success","data":{}}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (f *fakeBB) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// lastCall returns the most recent call, failing the test if there was none.
func (f *fakeBB) lastCall(t *testing.T) endpointCall {
	t.Helper()
	calls := f.Calls()
	if len(calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return calls[len(calls)-1]
}

// jsonBody decodes the recorded request body.
func (c endpointCall) jsonBody(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(c.Body), &out); err != nil {
		t.Fatalf("request body %q is not JSON: %v", c.Body, err)
	}
	return out
}

func newTestConfig(serverURL string) Config {
	cfg := Config{ServerURL: serverURL, Password: testPassword}
	if err := cfg.PostProcess(); err != nil {
		panic(err)
	}
	return cfg
}

// newTestNode returns a node talking to a fresh fakeBB.
func newTestNode(t *testing.T) (*Node, *fakeBB) {
	t.Helper()
	bb := newFakeBB(t)
	return New(newTestConfig(bb.Server.URL+"/"), zerolog.Nop()), bb
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
