package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Name: "NutriScan", Environment: "development"},
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "sqlite", Path: "test.db"},
		AI:       AIConfig{Provider: "gemini", APIKey: "key"},
		Tracker:  TrackerConfig{Timezone: "Local"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "postgres without name", mutate: func(c *Config) {
			c.Database.Driver = "postgres"
			c.Database.Database = ""
		}, wantErr: "database.database"},
		{name: "gemini without key", mutate: func(c *Config) { c.AI.APIKey = "" }, wantErr: "ai.api_key"},
		{name: "ollama without key", mutate: func(c *Config) {
			c.AI.Provider = "ollama"
			c.AI.APIKey = ""
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "bard" }, wantErr: "ai.provider"},
		{name: "bad timezone", mutate: func(c *Config) { c.Tracker.Timezone = "Mars/Olympus" }, wantErr: "tracker.timezone"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Provider = "s3" }, wantErr: "storage.bucket"},
		{name: "production without secret", mutate: func(c *Config) { c.App.Environment = "production" }, wantErr: "jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Tracker.Timezone = "Asia/Jakarta"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
ai:
  provider: ollama
tracker:
  timezone: UTC
`), 0o600))

	t.Setenv("NUTRISCAN_SERVER_PORT", "9091")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10*time.Minute, cfg.AI.RecommendationCacheTTL)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.VisionModel)
}

func TestConnectionStrings(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432, Database: "nutri",
		Username: "u", Password: "p", SSLMode: "disable",
	}
	cfg.Redis = RedisConfig{Host: "cache", Port: 6379}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=nutri sslmode=disable", cfg.GetDSN())
	assert.Equal(t, "postgres://u:p@db:5432/nutri?sslmode=disable", cfg.GetMigrationURL())
	assert.Equal(t, "cache:6379", cfg.GetRedisAddr())
}
