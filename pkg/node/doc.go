// Copyright 2024-2026 Aiku AI

// Package node is a reference host for the bluebubbles dispatcher: YAML
// configuration, an in-memory credential store, a net/http transport and the
// catalogue of BlueBubbles actions.
package node
