// Package config provides configuration types and defaults for onboard.
package config

import "time"

// Config holds all configuration for onboard.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth"`
	Reconnect   ReconnectConfig   `yaml:"reconnect" mapstructure:"reconnect"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	TUI         TUIConfig         `yaml:"tui" mapstructure:"tui"`
	Relay       RelayConfig       `yaml:"relay" mapstructure:"relay"`
}

// ServerConfig holds the backend location.
type ServerConfig struct {
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`                   // REST base; ws(s) address is derived from it
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"` // WebSocket handshake timeout
	RequestTimeout   time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`     // REST request timeout
}

// AuthConfig holds where the access token comes from.
// An explicit Token wins over TokenFile.
type AuthConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	TokenFile string `yaml:"token_file" mapstructure:"token_file"`
}

// ReconnectConfig holds the reconnect backoff settings for progress streams.
type ReconnectConfig struct {
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelay        time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	FailOnExhaustion bool          `yaml:"fail_on_exhaustion" mapstructure:"fail_on_exhaustion"` // Publish an error snapshot when retries run out
}

// PathsConfig holds file paths for state, logs, socket and saved roadmaps.
type PathsConfig struct {
	State    string `yaml:"state" mapstructure:"state"`
	Log      string `yaml:"log" mapstructure:"log"`
	Socket   string `yaml:"socket" mapstructure:"socket"`
	Roadmaps string `yaml:"roadmaps" mapstructure:"roadmaps"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// TUIConfig holds settings for the terminal UI.
type TUIConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`         // Force the TUI on even without a TTY check
	EventLines int  `yaml:"event_lines" mapstructure:"event_lines"` // Connection log lines kept on screen
}

// RelayConfig holds settings for the development relay server.
type RelayConfig struct {
	Listen           string        `yaml:"listen" mapstructure:"listen"`
	JWTSecret        string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	RedisAddr        string        `yaml:"redis_addr" mapstructure:"redis_addr"` // Empty selects the in-memory bus
	StateTTL         time.Duration `yaml:"state_ttl" mapstructure:"state_ttl"`
	SimulateInterval time.Duration `yaml:"simulate_interval" mapstructure:"simulate_interval"`
	TokenTTL         time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:          "http://localhost:8000",
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   30 * time.Second,
		},
		Auth: AuthConfig{
			TokenFile: "",
		},
		Reconnect: ReconnectConfig{
			MaxRetries:       5,
			BaseDelay:        time.Second,
			MaxDelay:         16 * time.Second,
			FailOnExhaustion: false,
		},
		Paths: PathsConfig{
			State:    ".onboard/state.json",
			Log:      ".onboard/events.log",
			Socket:   ".onboard/onboard.sock",
			Roadmaps: ".onboard/roadmaps",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		TUI: TUIConfig{
			Enabled:    false,
			EventLines: 200,
		},
		Relay: RelayConfig{
			Listen:           "127.0.0.1:8000",
			JWTSecret:        "dev-secret",
			RedisAddr:        "",
			StateTTL:         time.Hour,
			SimulateInterval: 2 * time.Second,
			TokenTTL:         24 * time.Hour,
		},
	}
}
