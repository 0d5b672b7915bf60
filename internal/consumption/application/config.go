package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the importer policy, optionally loaded from a YAML file.
type Config struct {
	UpdateInterval time.Duration
	WindowDays     int
	MarginDays     int

	// Accounts, when set, replaces account discovery via the API.
	Accounts []string
}

// UnmarshalYAML decodes the policy file, keeping defaults for absent keys.
// The interval is written in Go duration syntax ("2h", "30m").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		UpdateInterval string   `yaml:"update_interval"`
		WindowDays     *int     `yaml:"window_days"`
		MarginDays     *int     `yaml:"margin_days"`
		Accounts       []string `yaml:"accounts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.UpdateInterval != "" {
		interval, err := time.ParseDuration(raw.UpdateInterval)
		if err != nil {
			return fmt.Errorf("update_interval: %w", err)
		}
		c.UpdateInterval = interval
	}
	if raw.WindowDays != nil {
		c.WindowDays = *raw.WindowDays
	}
	if raw.MarginDays != nil {
		c.MarginDays = *raw.MarginDays
	}
	if raw.Accounts != nil {
		c.Accounts = raw.Accounts
	}
	return nil
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: DefaultRefreshInterval,
		WindowDays:     DefaultWindowDays,
		MarginDays:     DefaultMarginDays,
	}
}

// LoadConfig reads the policy file named by IMPORTER_CONFIG, falling back to
// defaults when the variable is unset.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := os.Getenv("IMPORTER_CONFIG")
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("importer config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("importer config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("importer config: update_interval must be positive")
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("importer config: window_days must be positive")
	}
	if c.MarginDays < 0 {
		return fmt.Errorf("importer config: margin_days must not be negative")
	}
	return nil
}
