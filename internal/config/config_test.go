package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "config-test-secret-0123"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.Secret = testSecret
	return cfg
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestConfig_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Guard.TTL)
	assert.Equal(t, 30*time.Second, cfg.Guard.SweepInterval)
	assert.Equal(t, 100, cfg.WebSocket.MessagesPerMinute)
	assert.False(t, cfg.WebSocket.EnforceRoomOwnership)
	assert.Equal(t, BackendMemory, cfg.Guard.Backend)
	assert.Equal(t, BackendLocal, cfg.Relay.Backend)

	// No built-in secret: defaults alone must not validate
	assert.Error(t, cfg.Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing section", func(c *Config) { c.Guard = nil }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"short secret", func(c *Config) { c.Auth.Secret = "short" }},
		{"pong wait below ping", func(c *Config) { c.WebSocket.PongWait = c.WebSocket.PingInterval }},
		{"negative rate", func(c *Config) { c.WebSocket.MessagesPerMinute = -1 }},
		{"unknown guard backend", func(c *Config) { c.Guard.Backend = "etcd" }},
		{"zero ttl", func(c *Config) { c.Guard.TTL = 0 }},
		{"unknown relay backend", func(c *Config) { c.Relay.Backend = "nats" }},
		{"redis without addr", func(c *Config) { c.Relay.Backend = BackendRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(cfg, envMap(map[string]string{
		"CAREERFORGE_HTTP_PORT":                        "9090",
		"CAREERFORGE_AUTH_SECRET":                      testSecret,
		"CAREERFORGE_GUARD_BACKEND":                    "redis",
		"CAREERFORGE_GUARD_TTL":                        "90s",
		"CAREERFORGE_REDIS_ADDR":                       "localhost:6379",
		"CAREERFORGE_WEBSOCKET_ENFORCE_ROOM_OWNERSHIP": "true",
		"CAREERFORGE_HTTP_ALLOWED_ORIGINS":             "https://a.example, https://b.example",
		"CAREERFORGE_LOG_LEVEL":                        "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, BackendRedis, cfg.Guard.Backend)
	assert.Equal(t, 90*time.Second, cfg.Guard.TTL)
	assert.True(t, cfg.WebSocket.EnforceRoomOwnership)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level, "blank values are ignored")
	assert.True(t, cfg.UsesRedis())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyEnvReportsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(cfg, envMap(map[string]string{
		"CAREERFORGE_HTTP_PORT": "eighty",
		"CAREERFORGE_GUARD_TTL": "forever",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAREERFORGE_HTTP_PORT")
	assert.Contains(t, err.Error(), "CAREERFORGE_GUARD_TTL")
	assert.Equal(t, 8080, cfg.HTTP.Port, "bad values leave defaults in place")
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careerforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9191
  retry_max_elapsed: 500ms
auth:
  secret: file-secret-0123456789
guard:
  ttl: 2m
quiz:
  profiles_path: /etc/careerforge/profiles.yaml
`), 0o600))

	t.Setenv("CAREERFORGE_HTTP_PORT", "9090")
	t.Setenv("CAREERFORGE_HTTP_HOST", "127.0.0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.HTTP.Port, "file overrides environment")
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host, "environment overrides defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.RetryMaxElapsed)
	assert.Equal(t, 2*time.Minute, cfg.Guard.TTL)
	assert.Equal(t, 30*time.Second, cfg.Guard.SweepInterval, "unset fields keep defaults")
	assert.Equal(t, "/etc/careerforge/profiles.yaml", cfg.Quiz.ProfilesPath)
	assert.Equal(t, "127.0.0.1:9191", cfg.Addr())
}

func TestConfig_LoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("htpp:\n  port: 1\n"), 0o600))
	_, err = Load(unknown)
	assert.Error(t, err, "unknown keys are rejected")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("auth:\n  secret: short\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfig_DatabaseConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Path = "/tmp/x.db"

	db := cfg.DatabaseConfig()
	assert.Equal(t, "/tmp/x.db", db.DatabasePath)
	assert.Equal(t, cfg.Database.MaxConnections, db.MaxConnections)
}
