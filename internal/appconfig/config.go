package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/hipposync/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Backend       BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Verify        VerifyConfig   `mapstructure:"verify" yaml:"verify"`
	Geo           GeoConfig      `mapstructure:"geo" yaml:"geo"`
	Chat          ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Emulator      EmulatorConfig `mapstructure:"emulator" yaml:"emulator"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EnvPrefix prefixes environment overrides, e.g. HIPPOSYNC_BACKEND_BASE_URL.
const EnvPrefix = "HIPPOSYNC"

// BackendConfig points the client at the REST backend.
type BackendConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	UserAgent             string `mapstructure:"user_agent" yaml:"user_agent"`
}

// VerifyConfig controls the email verification landing flow.
type VerifyConfig struct {
	RedirectURL      string `mapstructure:"redirect_url" yaml:"redirect_url"`
	CountdownSeconds int    `mapstructure:"countdown_seconds" yaml:"countdown_seconds"`
}

// GeoConfig controls location enrichment at signup.
type GeoConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	GeocoderURL string `mapstructure:"geocoder_url" yaml:"geocoder_url"`
	Latitude    string `mapstructure:"latitude" yaml:"latitude"`
	Longitude   string `mapstructure:"longitude" yaml:"longitude"`
	Timezone    string `mapstructure:"timezone" yaml:"timezone"`
}

// ChatConfig seeds chat settings when none are stored yet.
type ChatConfig struct {
	Model        string  `mapstructure:"model" yaml:"model"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt" yaml:"system_prompt"`
}

// EmulatorConfig configures the local backend emulator.
type EmulatorConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	JWTSecret       string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes" yaml:"token_ttl_minutes"`
	AutoVerify      bool   `mapstructure:"auto_verify" yaml:"auto_verify"`
	VerifyLinkBase  string `mapstructure:"verify_link_base" yaml:"verify_link_base"`
	BcryptCost      int    `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".hipposync", "state"),
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8000",
			RequestTimeoutSeconds: 120,
			UserAgent:             "hipposync-cli",
		},
		Verify: VerifyConfig{
			RedirectURL:      "http://localhost:5173/verify-email",
			CountdownSeconds: int(schema.DefaultVerifyCountdown.Seconds()),
		},
		Geo: GeoConfig{
			Enabled:     true,
			GeocoderURL: "https://nominatim.openstreetmap.org",
			Latitude:    "",
			Longitude:   "",
			Timezone:    "",
		},
		Chat: ChatConfig{
			Model:        string(schema.DefaultModel),
			Temperature:  schema.DefaultTemperature,
			SystemPrompt: "",
		},
		Emulator: EmulatorConfig{
			Addr:            "127.0.0.1:8000",
			JWTSecret:       "change-me",
			TokenTTLMinutes: 60 * 24 * 7,
			AutoVerify:      false,
			VerifyLinkBase:  "http://localhost:5173/verify-email",
			BcryptCost:      10,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hipposync", "config.yaml"), nil
}

// ChatSettings converts the chat section into settings.
func (c Config) ChatSettings() schema.Settings {
	return schema.NormalizeSettings(schema.Settings{
		Model:        schema.ModelID(c.Chat.Model),
		Temperature:  c.Chat.Temperature,
		SystemPrompt: c.Chat.SystemPrompt,
	})
}
