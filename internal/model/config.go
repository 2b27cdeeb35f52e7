package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Auth method constants.
const (
	AuthMethodAPIKey = "api_key"
	AuthMethodOAuth  = "oauth"
)

// DefaultPollIntervalSec is how often issues are refreshed when the
// config does not say otherwise.
const DefaultPollIntervalSec = 3600

// StateMapping assigns a team's workflow states to the three todo buckets.
// The buckets are expected to be disjoint by convention; this is not
// enforced anywhere.
type StateMapping struct {
	// TodoStates are the workflow state IDs whose issues appear as
	// needs-action items. The first entry is the target state for
	// newly created and reopened items.
	TodoStates []string `mapstructure:"todo_states" yaml:"todo_states"`

	// CompletedState is the workflow state ID whose issues appear as
	// completed items, and the target state when an item is completed.
	CompletedState string `mapstructure:"completed_state" yaml:"completed_state"`

	// RemovedState is the workflow state ID items are moved to when
	// deleted from the todo list.
	RemovedState string `mapstructure:"removed_state" yaml:"removed_state"`
}

// TeamConfig holds the configuration for a single tracked team.
type TeamConfig struct {
	// ID is the Linear team UUID.
	ID string `mapstructure:"id" yaml:"id"`

	// Name is the team name, cached at setup time for display.
	Name string `mapstructure:"name" yaml:"name"`

	// States maps the team's workflow states to todo buckets.
	States StateMapping `mapstructure:"states" yaml:"states"`
}

// OAuthConfig holds OAuth client settings. The client is a PKCE public
// client, so there is no client secret.
type OAuthConfig struct {
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// AuthMethod is either "api_key" or "oauth". The token itself lives
	// in the system keyring, never in this file.
	AuthMethod string `mapstructure:"auth_method" yaml:"auth_method"`

	// Teams are the tracked teams with their state mappings.
	Teams []TeamConfig `mapstructure:"teams" yaml:"teams"`

	// PollIntervalSec is how often (in seconds) to refresh issues.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	OAuth   OAuthConfig   `mapstructure:"oauth" yaml:"oauth"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// Team returns the configuration for the given team ID, or nil when the
// team is not tracked.
func (c *AppConfig) Team(teamID string) *TeamConfig {
	for i := range c.Teams {
		if c.Teams[i].ID == teamID {
			return &c.Teams[i]
		}
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/linear-todo/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "linear-todo", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		AuthMethod:      AuthMethodAPIKey,
		Teams:           []TeamConfig{},
		PollIntervalSec: DefaultPollIntervalSec,
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("auth_method", AuthMethodAPIKey)
	v.SetDefault("poll_interval_sec", DefaultPollIntervalSec)
	v.SetDefault("display.theme", "default")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = DefaultPollIntervalSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("auth_method", cfg.AuthMethod)
	v.Set("teams", cfg.Teams)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	v.Set("oauth", cfg.OAuth)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
