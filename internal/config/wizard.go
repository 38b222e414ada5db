package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to gynoid! Let's configure your fleet.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Management droid token.
	tokenPrompt := promptui.Prompt{
		Label: "Slack bot token for the management droid",
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("token is required")
			}
			return nil
		},
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("management token: %w", err)
	}
	cfg.Management.Token = token

	// 2. Event delivery.
	modePrompt := promptui.Select{
		Label: "How should droids receive Slack events",
		Items: []string{
			"rtm    - websocket per droid",
			"events - Events API callbacks over HTTP",
		},
	}
	modeIdx, _, err := modePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("slack mode: %w", err)
	}
	cfg.Slack.Mode = []SlackMode{SlackRTM, SlackEvents}[modeIdx]

	if cfg.Slack.Mode == SlackEvents {
		secretPrompt := promptui.Prompt{Label: "Slack signing secret", Mask: '*'}
		secret, err := secretPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("signing secret: %w", err)
		}
		cfg.Slack.SigningSecret = secret
	}

	// 3. Storage locations.
	registryPrompt := promptui.Prompt{Label: "Droid registry file", Default: cfg.Registry}
	if cfg.Registry, err = registryPrompt.Run(); err != nil {
		return nil, fmt.Errorf("registry path: %w", err)
	}
	installPrompt := promptui.Prompt{Label: "Extension install directory", Default: cfg.InstallDir}
	if cfg.InstallDir, err = installPrompt.Run(); err != nil {
		return nil, fmt.Errorf("install dir: %w", err)
	}

	// 4. HTTP port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("invalid port")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
