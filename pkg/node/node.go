// Copyright 2024-2026 Aiku AI

package node

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// ErrUnknownAction is returned by Execute for names that match no action.
var ErrUnknownAction = errors.New("unknown action")

// Node runs BlueBubbles actions against the configured server.
type Node struct {
	Config      Config
	Log         zerolog.Logger
	Credentials *CredentialStore

	dispatcher *bluebubbles.Dispatcher
	host       bluebubbles.Host
}

// New creates a node using the net/http transport. cfg must already be
// post-processed.
func New(cfg Config, log zerolog.Logger) *Node {
	store := NewCredentialStore()
	store.Set(bluebubbles.CredentialsName, cfg.Credentials())
	transport := NewHTTPTransport(&log)
	return NewWithHost(cfg, log, store, NewHost(store, transport))
}

// NewWithHost creates a node that sends requests through host. store is
// exposed as Node.Credentials and may be nil.
func NewWithHost(cfg Config, log zerolog.Logger, store *CredentialStore, host bluebubbles.Host) *Node {
	nodeLog := log.With().Str("component", "bb_node").Logger()
	return &Node{
		Config:      cfg,
		Log:         nodeLog,
		Credentials: store,
		dispatcher:  bluebubbles.NewDispatcher(&log),
		host:        host,
	}
}

// Execute runs the named action with params and returns the server response.
func (n *Node) Execute(ctx context.Context, action string, params Parameters) (*bluebubbles.Response, error) {
	act, ok := findAction(action)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
	if params == nil {
		params = Parameters{}
	}
	req, err := act.build(n, params)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters for %s: %w", act.Name, err)
	}
	if err = n.applyCommon(&req, params); err != nil {
		return nil, fmt.Errorf("invalid parameters for %s: %w", act.Name, err)
	}

	log := n.Log.With().Str("action", act.Name).Logger()
	start := time.Now()
	resp, err := n.dispatcher.Request(log.WithContext(ctx), n.host, req)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Action failed")
		return nil, err
	}
	log.Debug().
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Action complete")
	return resp, nil
}

// applyCommon applies the options every action accepts: queryParameters,
// timeout and insecureSkipVerify.
func (n *Node) applyCommon(req *bluebubbles.Request, params Parameters) error {
	pairs, err := params.Pairs("queryParameters")
	if err != nil {
		return err
	}
	if len(pairs) > 0 {
		if req.Query == nil {
			req.Query = url.Values{}
		}
		for name, value := range bluebubbles.NameValuePairsToObject(pairs) {
			req.Query.Set(name, fmt.Sprint(value))
		}
	}

	req.Timeout = n.Config.RequestTimeout()
	if params.Has("timeout") {
		timeout, err := params.Int("timeout", 0)
		if err != nil {
			return err
		}
		if timeout < 0 {
			return fmt.Errorf("parameter %q must not be negative", "timeout")
		}
		req.Timeout = time.Duration(timeout) * time.Second
	}

	req.InsecureSkipVerify, err = params.Bool("insecureSkipVerify", n.Config.InsecureSkipVerify)
	return err
}

// ServerInfo is the subset of server.info the node reports after Verify.
type ServerInfo struct {
	ServerVersion     string `json:"server_version"`
	OSVersion         string `json:"os_version"`
	PrivateAPIEnabled bool   `json:"private_api"`
}

// Verify checks that the server is reachable and that the credentials are
// accepted, then returns basic server information.
func (n *Node) Verify(ctx context.Context) (*ServerInfo, error) {
	if _, err := n.Execute(ctx, "server.ping", nil); err != nil {
		return nil, fmt.Errorf("failed to ping server: %w", err)
	}
	resp, err := n.Execute(ctx, "server.info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	var envelope struct {
		Data *ServerInfo `json:"data"`
	}
	if err = resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to parse server info: %w", err)
	}
	info := envelope.Data
	if info == nil {
		info = &ServerInfo{}
	}
	n.Log.Info().
		Str("server_version", info.ServerVersion).
		Str("os_version", info.OSVersion).
		Bool("private_api", info.PrivateAPIEnabled).
		Msg("Connected to BlueBubbles server")
	return info, nil
}
