// Copyright 2024-2026 Aiku AI

package node

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

//go:embed example-config.yaml
var ExampleConfig string

// Environment variables that override the configured credentials.
const (
	EnvServerURL = "BLUEBUBBLES_SERVER_URL"
	EnvPassword  = "BLUEBUBBLES_PASSWORD"
)

// SendMethod selects how the BlueBubbles server delivers outgoing messages.
type SendMethod string

const (
	SendMethodAppleScript SendMethod = "apple-script"
	SendMethodPrivateAPI  SendMethod = "private-api"
)

// ParseSendMethod accepts the canonical names as well as loose spellings such
// as "Private API" or "apple_script". Empty input selects AppleScript.
func ParseSendMethod(value string) (SendMethod, error) {
	switch bluebubbles.Normalize(value) {
	case "", "applescript", "apple-script":
		return SendMethodAppleScript, nil
	case "privateapi", "private-api":
		return SendMethodPrivateAPI, nil
	default:
		return "", fmt.Errorf("unknown send method %q", value)
	}
}

// Config holds the node configuration.
type Config struct {
	ServerURL string `yaml:"server_url"`
	Password  string `yaml:"password"`
	// Timeout is the request timeout in seconds. Zero means the dispatcher
	// default.
	Timeout            int    `yaml:"timeout"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	SendMethod         string `yaml:"send_method"`

	Logging zeroconfig.Config `yaml:"logging"`

	sendMethod SendMethod `yaml:"-"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess validates the config and resolves derived values. It must be
// called before the config is used by a Node.
func (c *Config) PostProcess() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	parsed, err := url.Parse(bluebubbles.SanitizeHost(c.ServerURL))
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid server_url %q: expected an http or https URL", c.ServerURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	c.sendMethod, err = ParseSendMethod(c.SendMethod)
	if err != nil {
		return fmt.Errorf("invalid send_method: %w", err)
	}
	return nil
}

// DefaultSendMethod returns the send method resolved by PostProcess.
func (c *Config) DefaultSendMethod() SendMethod {
	if c.sendMethod == "" {
		return SendMethodAppleScript
	}
	return c.sendMethod
}

// RequestTimeout returns the configured timeout, or zero for the default.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Credentials returns the configured server credentials.
func (c *Config) Credentials() bluebubbles.Credentials {
	return bluebubbles.Credentials{ServerURL: c.ServerURL, Password: c.Password}
}

// applyEnv overrides the credentials with BLUEBUBBLES_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "server_url")
	helper.Copy(up.Str|up.Int|up.Float|up.Bool, "password")
	helper.Copy(up.Int, "timeout")
	helper.Copy(up.Bool, "insecure_skip_verify")
	helper.Copy(up.Str, "send_method")
	helper.Copy(up.Map, "logging")
}

// ParseConfig layers a user config on top of the example config, applies
// environment overrides and post-processes the result. Empty data yields the
// example config.
func ParseConfig(data []byte) (*Config, error) {
	var base yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		var user yaml.Node
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		upgradeConfig(up.NewHelper(&base, &user))
	}

	var cfg Config
	if err := base.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads and parses the config file at path. An empty path uses
// the example config alone.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}
