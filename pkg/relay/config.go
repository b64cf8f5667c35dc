// Copyright 2024-2026 Aiku AI

package relay

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.mau.fi/util/ptr"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Default pacing values, matching the assumed provider throughput ceiling.
const (
	DefaultMessageDelay = 500 * time.Millisecond
	DefaultSourceDelay  = 2 * time.Second
)

// Default history bounds applied when history sync is enabled without
// explicit limits.
const (
	DefaultHistoryLimit    = 100
	DefaultHistoryDaysBack = 7
)

// Source is one configured source conversation. Sources keep their config
// file order, which is the backfill iteration order.
type Source struct {
	ID    int64
	Label string
}

// HistorySyncConfig bounds the one-time historical backfill.
type HistorySyncConfig struct {
	Enabled  bool `yaml:"enabled"`
	Limit    int  `yaml:"limit"`
	DaysBack int  `yaml:"days_back"`
}

// Config holds the full relay configuration. Load it with LoadConfig;
// a Config that has not been through PostProcess is not ready for use.
type Config struct {
	APIToken   string `yaml:"api_token" env:"RELAY_API_TOKEN"`
	TargetChat string `yaml:"target_chat" env:"RELAY_TARGET_CHAT"`

	// Sources is filled from the source_chats mapping by UnmarshalYAML,
	// preserving key order.
	Sources []Source `yaml:"-"`

	AddSourceInfo *bool             `yaml:"add_source_info"`
	HistorySync   HistorySyncConfig `yaml:"history_sync"`
	Filters       FilterConfig      `yaml:"filters"`

	MessageDelay time.Duration `yaml:"message_delay"`
	SourceDelay  time.Duration `yaml:"source_delay"`

	sourceLabels map[int64]string
}

// UnmarshalYAML decodes the config. source_chats is handled manually so the
// mapping's key order survives (Go maps would lose it), and the delay fields
// are decoded from "500ms" style strings.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		APIToken      string            `yaml:"api_token"`
		TargetChat    string            `yaml:"target_chat"`
		AddSourceInfo *bool             `yaml:"add_source_info"`
		HistorySync   HistorySyncConfig `yaml:"history_sync"`
		Filters       FilterConfig      `yaml:"filters"`
		MessageDelay  string            `yaml:"message_delay"`
		SourceDelay   string            `yaml:"source_delay"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.APIToken = raw.APIToken
	c.TargetChat = raw.TargetChat
	c.AddSourceInfo = raw.AddSourceInfo
	c.HistorySync = raw.HistorySync
	c.Filters = raw.Filters

	var err error
	if c.MessageDelay, err = parseDelay("message_delay", raw.MessageDelay); err != nil {
		return err
	}
	if c.SourceDelay, err = parseDelay("source_delay", raw.SourceDelay); err != nil {
		return err
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "source_chats" {
			return c.decodeSources(node.Content[i+1])
		}
	}
	return nil
}

// parseDelay parses an optional duration string. Empty means "use default".
func parseDelay(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: malformed duration %q: %w", field, value, err)
	}
	return d, nil
}

// decodeSources parses the source_chats mapping. Keys are chat ids, values
// are human-readable labels. Keys are trimmed and must normalize to
// integers; a malformed key is a load-time error, not a per-message one.
func (c *Config) decodeSources(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("source_chats must be a mapping of chat id to label")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		raw := node.Content[i].Value
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("source_chats: malformed chat id %q: %w", raw, err)
		}
		c.Sources = append(c.Sources, Source{ID: id, Label: node.Content[i+1].Value})
	}
	return nil
}

// PostProcess validates required fields and fills defaults. It must be
// called once after decoding and before the config is used.
func (c *Config) PostProcess() error {
	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}
	if c.TargetChat == "" {
		return fmt.Errorf("target_chat is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("source_chats must list at least one source")
	}

	c.sourceLabels = make(map[int64]string, len(c.Sources))
	for _, src := range c.Sources {
		if _, ok := c.sourceLabels[src.ID]; ok {
			return fmt.Errorf("source_chats: duplicate chat id %d", src.ID)
		}
		c.sourceLabels[src.ID] = src.Label
	}

	if c.AddSourceInfo == nil {
		c.AddSourceInfo = ptr.Ptr(true)
	}
	if c.MessageDelay <= 0 {
		c.MessageDelay = DefaultMessageDelay
	}
	if c.SourceDelay <= 0 {
		c.SourceDelay = DefaultSourceDelay
	}
	if c.HistorySync.Enabled {
		if c.HistorySync.Limit == 0 {
			c.HistorySync.Limit = DefaultHistoryLimit
		}
		if c.HistorySync.DaysBack == 0 {
			c.HistorySync.DaysBack = DefaultHistoryDaysBack
		}
	}
	return nil
}

// IsSource reports whether the chat id is a configured source.
func (c *Config) IsSource(chatID int64) bool {
	_, ok := c.sourceLabels[chatID]
	return ok
}

// SourceLabel returns the configured label for a source chat id.
func (c *Config) SourceLabel(chatID int64) (string, bool) {
	label, ok := c.sourceLabels[chatID]
	return label, ok
}

// SourceInfoEnabled reports whether composed messages get an origin footer.
func (c *Config) SourceInfoEnabled() bool {
	return c.AddSourceInfo == nil || *c.AddSourceInfo
}

// LoadConfig reads, decodes, env-overrides and validates a config file.
// Any error here is fatal: nothing is relayed on a bad config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
