// Copyright 2024-2026 Aiku AI

package node

import (
	"context"
	"sync"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// CredentialStore keeps named credentials in memory. It is safe for
// concurrent use.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]bluebubbles.Credentials
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]bluebubbles.Credentials)}
}

// Set stores creds under name, replacing any previous entry.
func (s *CredentialStore) Set(name string, creds bluebubbles.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = creds
}

// Delete removes the credentials stored under name.
func (s *CredentialStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, name)
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// GetCredentials implements the credential half of bluebubbles.Host. It
// returns a copy, or nil if nothing is stored under name.
func (s *CredentialStore) GetCredentials(_ context.Context, name string) (*bluebubbles.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.creds[name]
	if !ok {
		return nil, nil
	}
	return &creds, nil
}
