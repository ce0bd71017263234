// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/moviepicker/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Plex     PlexConfig     `koanf:"plex"`
	Auth     AuthConfig     `koanf:"auth"`
	Playback PlaybackConfig `koanf:"playback"`
	Cleanup  CleanupConfig  `koanf:"cleanup"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type PlexConfig struct {
	ServerURL string `koanf:"server_url"`
	Token     string `koanf:"token"`
	// LibraryName is matched against section titles when LibrarySection is empty.
	LibraryName       string        `koanf:"library_name"`
	LibrarySection    string        `koanf:"library_section"`
	MachineIdentifier string        `koanf:"machine_identifier"`
	ClientIdentifier  string        `koanf:"client_identifier"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	CatalogCacheTTL   time.Duration `koanf:"catalog_cache_ttl"`
}

type AuthConfig struct {
	// Mode is auth0 or local.
	Mode          string `koanf:"mode"`
	Auth0Domain   string `koanf:"auth0_domain"`
	Auth0Audience string `koanf:"auth0_audience"`
	LocalUser     string `koanf:"local_user"`
}

type PlaybackConfig struct {
	StrategyTimeout        time.Duration `koanf:"strategy_timeout"`
	DeviceRegistryFallback bool          `koanf:"device_registry_fallback"`
	PlaylistName           string        `koanf:"playlist_name"`
}

type CleanupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "./moviepicker.db"},
		Plex: PlexConfig{
			ServerURL:       "http://localhost:32400",
			LibraryName:     "Movies",
			RequestTimeout:  15 * time.Second,
			CatalogCacheTTL: time.Minute,
		},
		Auth: AuthConfig{
			Mode:      "auth0",
			LocalUser: "local",
		},
		Playback: PlaybackConfig{
			StrategyTimeout:        8 * time.Second,
			DeviceRegistryFallback: true,
			PlaylistName:           "Movie Picker",
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Interval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: struct defaults, then the config file, then env.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envMappings = map[string]string{
	"port":                              "server.port",
	"server_read_timeout":               "server.read_timeout",
	"server_write_timeout":              "server.write_timeout",
	"server_shutdown_timeout":           "server.shutdown_timeout",
	"database_path":                     "database.path",
	"plex_server_url":                   "plex.server_url",
	"plex_token":                        "plex.token",
	"plex_library_name":                 "plex.library_name",
	"plex_library_section":              "plex.library_section",
	"plex_machine_identifier":           "plex.machine_identifier",
	"plex_client_identifier":            "plex.client_identifier",
	"plex_request_timeout":              "plex.request_timeout",
	"plex_catalog_cache_ttl":            "plex.catalog_cache_ttl",
	"auth_mode":                         "auth.mode",
	"auth0_domain":                      "auth.auth0_domain",
	"auth0_audience":                    "auth.auth0_audience",
	"auth_local_user":                   "auth.local_user",
	"playback_strategy_timeout":         "playback.strategy_timeout",
	"playback_device_registry_fallback": "playback.device_registry_fallback",
	"playback_playlist_name":            "playback.playlist_name",
	"cleanup_enabled":                   "cleanup.enabled",
	"cleanup_interval":                  "cleanup.interval",
	"log_level":                         "logging.level",
	"log_format":                        "logging.format",
	"log_caller":                        "logging.caller",
}

// envTransformFunc maps known environment variables to config paths and drops the rest.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("plex.token (PLEX_TOKEN) is required")
	}
	u, err := url.Parse(c.Plex.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("plex.server_url must be an absolute URL, got %q", c.Plex.ServerURL)
	}
	switch c.Auth.Mode {
	case "auth0":
		if c.Auth.Auth0Domain == "" || c.Auth.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_DOMAIN and AUTH0_AUDIENCE are required in auth0 mode")
		}
	case "local":
		if c.Auth.LocalUser == "" {
			return fmt.Errorf("auth.local_user is required in local mode")
		}
	default:
		return fmt.Errorf("auth.mode must be auth0 or local, got %q", c.Auth.Mode)
	}
	if c.Playback.StrategyTimeout <= 0 {
		return fmt.Errorf("playback.strategy_timeout must be positive")
	}
	if c.Playback.PlaylistName == "" {
		return fmt.Errorf("playback.playlist_name is required")
	}
	if c.Cleanup.Enabled && c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup.interval must be positive when cleanup is enabled")
	}
	return nil
}
