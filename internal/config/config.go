// Package config loads the widget deployment settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"payment-widget/internal/protocol"
	"payment-widget/internal/server"
	"payment-widget/internal/validation"
	"payment-widget/internal/widget"
)

// Reply origin policies.
const (
	ReplyOriginAny      = "any"
	ReplyOriginObserved = "observed"
)

// Config represents the contents of the widget config file.
type Config struct {
	Version         string        `yaml:"version"`
	Source          string        `yaml:"source"`
	ProcessingDelay time.Duration `yaml:"processing_delay"`
	CardMode        string        `yaml:"card_mode"`
	DefaultCurrency string        `yaml:"default_currency"`
	ReplyOrigin     string        `yaml:"reply_origin"`
	Listen          string        `yaml:"listen"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:         protocol.Version,
		Source:          protocol.DefaultSource,
		ProcessingDelay: widget.DefaultProcessingDelay,
		CardMode:        string(validation.CardModeLast4),
		DefaultCurrency: widget.DefaultCurrency,
		ReplyOrigin:     ReplyOriginAny,
		Listen:          ":8080",
		SessionTTL:      server.DefaultSessionTTL,
		LogLevel:        "info",
	}
}

// Load reads the config at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch validation.CardMode(c.CardMode) {
	case validation.CardModeLast4, validation.CardModePAN:
	default:
		return fmt.Errorf("card_mode must be %q or %q, got %q", validation.CardModeLast4, validation.CardModePAN, c.CardMode)
	}
	switch c.ReplyOrigin {
	case ReplyOriginAny, ReplyOriginObserved:
	default:
		return fmt.Errorf("reply_origin must be %q or %q, got %q", ReplyOriginAny, ReplyOriginObserved, c.ReplyOrigin)
	}
	if c.ProcessingDelay < 0 {
		return fmt.Errorf("processing_delay must not be negative")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must not be negative")
	}
	return nil
}

// Widget returns the per-instance widget settings.
func (c *Config) Widget() widget.Config {
	return widget.Config{
		Source:          c.Source,
		Version:         c.Version,
		ProcessingDelay: c.ProcessingDelay,
		CardMode:        validation.CardMode(c.CardMode),
		DefaultCurrency: c.DefaultCurrency,
		ReplyToObserved: c.ReplyOrigin == ReplyOriginObserved,
	}
}
