// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bluebubbles

import (
	"context"
	"sync"
)

// fakeHost records every RequestOptions it receives and answers with a
// canned response or error.
type fakeHost struct {
	mu    sync.Mutex
	calls []*RequestOptions

	Credentials    map[string]*Credentials
	CredentialsErr error
	Response       *Response
	Err            error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		Credentials: map[string]*Credentials{
			CredentialsName: {ServerURL: "http://bb.local:1234/", Password: "hunter2"},
		},
		Response: &Response{StatusCode: 200, Body: []byte(`{"status":200}`)},
	}
}

func (f *fakeHost) GetCredentials(_ context.Context, name string) (*Credentials, error) {
	if f.CredentialsErr != nil {
		return nil, f.CredentialsErr
	}
	return f.Credentials[name], nil
}

func (f *fakeHost) HTTPRequest(_ context.Context, opts *RequestOptions) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Response, nil
}

func (f *fakeHost) Calls() []*RequestOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*RequestOptions, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// lastCall returns the most recent options, or nil if nothing was sent.
func (f *fakeHost) lastCall() *RequestOptions {
	calls := f.Calls()
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}
