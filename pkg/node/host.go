// Copyright 2024-2026 Aiku AI

package node

import "github.com/aiku/bluebubbles-node/pkg/bluebubbles"

// Host pairs a credential store with an HTTP transport.
type Host struct {
	*CredentialStore
	*HTTPTransport
}

var _ bluebubbles.Host = (*Host)(nil)

// NewHost creates a host around the given store and transport.
func NewHost(store *CredentialStore, transport *HTTPTransport) *Host {
	return &Host{CredentialStore: store, HTTPTransport: transport}
}
