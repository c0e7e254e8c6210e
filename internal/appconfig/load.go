package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A .env file next to the config (or in the working directory) is loaded first and
// HIPPOSYNC_* environment variables override file values.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return Config{}, err
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.request_timeout_seconds", cfg.Backend.RequestTimeoutSeconds)
	v.SetDefault("backend.user_agent", cfg.Backend.UserAgent)
	v.SetDefault("verify.redirect_url", cfg.Verify.RedirectURL)
	v.SetDefault("verify.countdown_seconds", cfg.Verify.CountdownSeconds)
	v.SetDefault("geo.enabled", cfg.Geo.Enabled)
	v.SetDefault("geo.geocoder_url", cfg.Geo.GeocoderURL)
	v.SetDefault("geo.latitude", cfg.Geo.Latitude)
	v.SetDefault("geo.longitude", cfg.Geo.Longitude)
	v.SetDefault("geo.timezone", cfg.Geo.Timezone)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.temperature", cfg.Chat.Temperature)
	v.SetDefault("chat.system_prompt", cfg.Chat.SystemPrompt)
	v.SetDefault("emulator.addr", cfg.Emulator.Addr)
	v.SetDefault("emulator.jwt_secret", cfg.Emulator.JWTSecret)
	v.SetDefault("emulator.token_ttl_minutes", cfg.Emulator.TokenTTLMinutes)
	v.SetDefault("emulator.auto_verify", cfg.Emulator.AutoVerify)
	v.SetDefault("emulator.verify_link_base", cfg.Emulator.VerifyLinkBase)
	v.SetDefault("emulator.bcrypt_cost", cfg.Emulator.BcryptCost)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateBackendConfig(cfg.Backend); err != nil {
		return Config{}, err
	}
	if err := validateGeoConfig(cfg.Geo); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func validateBackendConfig(cfg BackendConfig) error {
	parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url must include scheme and host (e.g. http://localhost:8000)")
	}
	if cfg.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("backend.request_timeout_seconds must not be negative")
	}
	return nil
}

func validateGeoConfig(cfg GeoConfig) error {
	lat := strings.TrimSpace(cfg.Latitude)
	lon := strings.TrimSpace(cfg.Longitude)
	if (lat == "") != (lon == "") {
		return fmt.Errorf("geo.latitude and geo.longitude must be set together")
	}
	if lat == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(lat, 64); err != nil || v < -90 || v > 90 {
		return fmt.Errorf("geo.latitude must be a number between -90 and 90")
	}
	if v, err := strconv.ParseFloat(lon, 64); err != nil || v < -180 || v > 180 {
		return fmt.Errorf("geo.longitude must be a number between -180 and 180")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Backend.BaseURL = expandEnv(cfg.Backend.BaseURL)
	cfg.Verify.RedirectURL = expandEnv(cfg.Verify.RedirectURL)
	cfg.Geo.GeocoderURL = expandEnv(cfg.Geo.GeocoderURL)
	cfg.Emulator.JWTSecret = expandEnv(cfg.Emulator.JWTSecret)
	cfg.Emulator.VerifyLinkBase = expandEnv(cfg.Emulator.VerifyLinkBase)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	if key == "HOME" {
		if home, err := os.UserHomeDir(); err == nil {
			return home, true
		}
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
