package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgdatabase "careerforge/pkg/database"
)

// Backend names shared by the guard and relay sections
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendRedis  = "redis"
)

// minSecretBytes is the shortest HMAC secret accepted
const minSecretBytes = 16

// EnvPrefix namespaces every environment override
const EnvPrefix = "CAREERFORGE_"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database  *DatabaseConfig  `yaml:"database"`
	HTTP      *HTTPConfig      `yaml:"http"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Auth      *AuthConfig      `yaml:"auth"`
	Guard     *GuardConfig     `yaml:"guard"`
	Redis     *RedisConfig     `yaml:"redis"`
	Relay     *RelayConfig     `yaml:"relay"`
	Quiz      *QuizConfig      `yaml:"quiz"`
	Log       *LogConfig       `yaml:"log"`
}

// FUNCTIONAL DISCOVERY: Database configuration supports SQLite optimizations
type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	// RetryMaxElapsed bounds how long a handler retries an operation that is already in progress
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

type WebSocketConfig struct {
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongWait          time.Duration `yaml:"pong_wait"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes"`
	MessagesPerMinute int           `yaml:"messages_per_minute"`
	// EnforceRoomOwnership checks session participation before a session room join
	EnforceRoomOwnership bool `yaml:"enforce_room_ownership"`
}

type AuthConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	Leeway time.Duration `yaml:"leeway"`
}

type GuardConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RelayConfig struct {
	Backend string `yaml:"backend"`
	Channel string `yaml:"channel"`
}

type QuizConfig struct {
	// ProfilesPath optionally replaces the built-in career profile catalog
	ProfilesPath string `yaml:"profiles_path"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// DefaultConfig returns settings for a single-instance deployment
// FUNCTIONAL DISCOVERY: No default auth secret; a deployment must supply one
func DefaultConfig() *Config {
	db := pkgdatabase.DefaultConfig()
	return &Config{
		Database: &DatabaseConfig{
			Path:            db.DatabasePath,
			MaxConnections:  db.MaxConnections,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
		},
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
			RetryMaxElapsed: 2 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:      30 * time.Second,
			PongWait:          60 * time.Second,
			MaxMessageBytes:   128 * 1024,
			MessagesPerMinute: 100,
		},
		Auth: &AuthConfig{
			Leeway: 30 * time.Second,
		},
		Guard: &GuardConfig{
			Backend:       BackendMemory,
			TTL:           5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Redis: &RedisConfig{},
		Relay: &RelayConfig{
			Backend: BackendLocal,
			Channel: "careerforge:relay",
		},
		Quiz: &QuizConfig{},
		Log: &LogConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

// Validate rejects configurations that would fail at runtime
func (c *Config) Validate() error {
	if c.Database == nil || c.HTTP == nil || c.WebSocket == nil || c.Auth == nil ||
		c.Guard == nil || c.Redis == nil || c.Relay == nil || c.Quiz == nil || c.Log == nil {
		return errors.New("every configuration section is required")
	}

	if err := c.DatabaseConfig().Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.RetryMaxElapsed < 0 {
		return fmt.Errorf("HTTP retry_max_elapsed cannot be negative")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket pong wait must exceed the ping interval")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("WebSocket max message bytes must be positive")
	}
	if c.WebSocket.MessagesPerMinute < 0 {
		return fmt.Errorf("WebSocket messages per minute cannot be negative")
	}

	if len(c.Auth.Secret) < minSecretBytes {
		return fmt.Errorf("auth secret must be at least %d bytes", minSecretBytes)
	}

	if c.Guard.Backend != BackendMemory && c.Guard.Backend != BackendRedis {
		return fmt.Errorf("guard backend must be %q or %q", BackendMemory, BackendRedis)
	}
	if c.Guard.TTL <= 0 || c.Guard.SweepInterval <= 0 {
		return fmt.Errorf("guard ttl and sweep interval must be positive")
	}

	if c.Relay.Backend != BackendLocal && c.Relay.Backend != BackendRedis {
		return fmt.Errorf("relay backend must be %q or %q", BackendLocal, BackendRedis)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when a redis backend is selected")
	}

	return nil
}

// UsesRedis reports whether any component needs the Redis client
func (c *Config) UsesRedis() bool {
	return c.Guard.Backend == BackendRedis || c.Relay.Backend == BackendRedis
}

// DatabaseConfig converts the section into the persistence layer's config
func (c *Config) DatabaseConfig() *pkgdatabase.Config {
	return &pkgdatabase.Config{
		DatabasePath:    c.Database.Path,
		MaxConnections:  c.Database.MaxConnections,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// Load builds the configuration: defaults, then environment, then the YAML file when path is set
// FUNCTIONAL DISCOVERY: Configuration precedence file > environment > defaults; file errors are
// returned rather than ignored so a typo cannot silently fall back to defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays CAREERFORGE_* variables read through lookup
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	setString("DATABASE_PATH", &cfg.Database.Path)
	setInt("DATABASE_MAX_CONNECTIONS", &cfg.Database.MaxConnections)

	setString("HTTP_HOST", &cfg.HTTP.Host)
	setInt("HTTP_PORT", &cfg.HTTP.Port)
	setDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	setDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	if v, ok := get("HTTP_ALLOWED_ORIGINS"); ok {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	setDuration("WEBSOCKET_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	setDuration("WEBSOCKET_PONG_WAIT", &cfg.WebSocket.PongWait)
	setInt("WEBSOCKET_MESSAGES_PER_MINUTE", &cfg.WebSocket.MessagesPerMinute)
	setBool("WEBSOCKET_ENFORCE_ROOM_OWNERSHIP", &cfg.WebSocket.EnforceRoomOwnership)

	setString("AUTH_SECRET", &cfg.Auth.Secret)
	setString("AUTH_ISSUER", &cfg.Auth.Issuer)
	setDuration("AUTH_LEEWAY", &cfg.Auth.Leeway)

	setString("GUARD_BACKEND", &cfg.Guard.Backend)
	setDuration("GUARD_TTL", &cfg.Guard.TTL)
	setDuration("GUARD_SWEEP_INTERVAL", &cfg.Guard.SweepInterval)

	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)

	setString("RELAY_BACKEND", &cfg.Relay.Backend)
	setString("RELAY_CHANNEL", &cfg.Relay.Channel)

	setString("QUIZ_PROFILES_PATH", &cfg.Quiz.ProfilesPath)

	setString("LOG_MODE", &cfg.Log.Mode)
	setString("LOG_LEVEL", &cfg.Log.Level)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
