package config

// DefaultPath is where commands look for the boot configuration.
const DefaultPath = "gynoid.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Registry:   "gynoid.config.json",
		InstallDir: "droids",
		Host:       "127.0.0.1",
		Port:       8080,
		AuditDB:    ".gynoid/audit.db",
		Management: ManagementConfig{
			Droid:     "gynoid",
			Extension: "gynoid/gynoid-droid",
		},
		Slack: SlackConfig{
			Mode: SlackRTM,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			MinSeverity: "info",
		},
	}
}
