package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/gynoid/internal/cluster"
	"github.com/ziadkadry99/gynoid/internal/config"
	"github.com/ziadkadry99/gynoid/internal/observability"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `gynoid init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return observability.New(level, cfg.Log.Format)
}

// apiClient returns a client for the admin API of a running server. The
// admin token comes from the config file or GYNOID_ADMIN__TOKEN.
func apiClient() (*cluster.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	base := serverURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return cluster.NewClient(base, nil).WithToken(cfg.Admin.Token), nil
}
