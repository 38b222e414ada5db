package config

// SlackMode selects how droids receive Slack events.
type SlackMode string

const (
	SlackRTM    SlackMode = "rtm"
	SlackEvents SlackMode = "events"
)

// Config is the top-level gynoid boot configuration, corresponding to
// gynoid.yml. Droid definitions live in the registry file, not here.
type Config struct {
	Registry       string           `yaml:"registry" koanf:"registry"`
	InstallDir     string           `yaml:"install_dir" koanf:"install_dir"`
	Host           string           `yaml:"host" koanf:"host"`
	Port           int              `yaml:"port" koanf:"port"`
	InstallCommand string           `yaml:"install_command" koanf:"install_command"`
	AuditDB        string           `yaml:"audit_db" koanf:"audit_db"`
	AuditRetention int              `yaml:"audit_retention_days" koanf:"audit_retention_days"`
	Admin          AdminConfig      `yaml:"admin" koanf:"admin"`
	Management     ManagementConfig `yaml:"management" koanf:"management"`
	Slack          SlackConfig      `yaml:"slack" koanf:"slack"`
	Log            LogConfig        `yaml:"log" koanf:"log"`
	Notify         NotifyConfig     `yaml:"notify" koanf:"notify"`
}

// ManagementConfig describes the droid that serves the chat management
// commands.
type ManagementConfig struct {
	Droid     string `yaml:"droid" koanf:"droid"`
	Token     string `yaml:"token,omitempty" koanf:"token"`
	Extension string `yaml:"extension" koanf:"extension"`
}

// AdminConfig protects the admin API. When Token is set every admin
// request must carry it as a bearer token.
type AdminConfig struct {
	Token string `yaml:"token,omitempty" koanf:"token"`
}

// SlackConfig holds Slack connection settings shared by every droid.
type SlackConfig struct {
	Mode          SlackMode `yaml:"mode" koanf:"mode"`
	SigningSecret string    `yaml:"signing_secret,omitempty" koanf:"signing_secret"`
	BaseURL       string    `yaml:"base_url,omitempty" koanf:"base_url"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// NotifyConfig lists webhooks that receive fleet changes.
type NotifyConfig struct {
	Webhooks    []string `yaml:"webhooks,omitempty" koanf:"webhooks"`
	MinSeverity string   `yaml:"min_severity" koanf:"min_severity"`
}
