// Package config loads gynoid's boot configuration from YAML with
// GYNOID_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "GYNOID_"

// envAliases keeps the variable names older deployments export.
var envAliases = map[string]string{
	"token":       "management.token",
	"config_path": "registry",
}

// envKey maps GYNOID_SLACK__SIGNING_SECRET to slack.signing_secret.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	return strings.ReplaceAll(key, "__", ".")
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (GYNOID_*). A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path. The file may
// hold the management token, so it is only readable by its owner.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validSlackModes = map[SlackMode]bool{
	SlackRTM:    true,
	SlackEvents: true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

var validSeverities = map[string]bool{
	"info":     true,
	"warning":  true,
	"critical": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry is required")
	}
	if c.InstallDir == "" {
		return fmt.Errorf("install_dir is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("invalid audit_retention_days %d", c.AuditRetention)
	}
	if c.Management.Droid == "" {
		return fmt.Errorf("management.droid is required")
	}
	if !validSlackModes[c.Slack.Mode] {
		return fmt.Errorf("invalid slack.mode %q: must be one of rtm, events", c.Slack.Mode)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be one of text, json", c.Log.Format)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validSeverities[c.Notify.MinSeverity] {
		return fmt.Errorf("invalid notify.min_severity %q: must be one of info, warning, critical", c.Notify.MinSeverity)
	}
	return nil
}
