package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redditetl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "stocks", cfg.Extract.Subreddit)
	assert.Equal(t, "week", cfg.Extract.TimeFilter)
	assert.Equal(t, 1000, cfg.Extract.Limit)
	assert.Equal(t, 100, cfg.Extract.ThrottleEvery)
	assert.Equal(t, time.Second, cfg.Extract.ThrottlePause)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.Delay)

	assert.Equal(t, "./tmp", cfg.Output.Directory)
	assert.Equal(t, "reddit", cfg.Warehouse.Table)
	assert.Equal(t, 100, cfg.Warehouse.MaxErrors)
	assert.False(t, cfg.Warehouse.RecreateSchema)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
reddit:
  client_id: abc
  client_secret: shh
extract:
  subreddit: golang
  time_filter: month
  limit: 25
retry:
  max_attempts: 5
  delay: 2s
aws:
  bucket_name: my-bucket
warehouse:
  table: posts
  recreate_schema: true
`)

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "abc", cfg.Reddit.ClientID)
	assert.Equal(t, "golang", cfg.Extract.Subreddit)
	assert.Equal(t, "month", cfg.Extract.TimeFilter)
	assert.Equal(t, 25, cfg.Extract.Limit)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.Equal(t, "my-bucket", cfg.AWS.BucketName)
	assert.Equal(t, "posts", cfg.Warehouse.Table)
	assert.True(t, cfg.Warehouse.RecreateSchema)

	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Warehouse.MaxErrors)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "extract: [unclosed")
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDDITETL_CLIENT_ID", "env-id")
	t.Setenv("REDDITETL_SUBREDDIT", "investing")
	t.Setenv("REDDITETL_LIMIT", "10")
	t.Setenv("REDDITETL_BUCKET_NAME", "env-bucket")
	t.Setenv("REDDITETL_RECREATE_SCHEMA", "true")
	t.Setenv("REDDITETL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-id", cfg.Reddit.ClientID)
	assert.Equal(t, "investing", cfg.Extract.Subreddit)
	assert.Equal(t, 10, cfg.Extract.Limit)
	assert.Equal(t, "env-bucket", cfg.AWS.BucketName)
	assert.True(t, cfg.Warehouse.RecreateSchema)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidInt(t *testing.T) {
	t.Setenv("REDDITETL_LIMIT", "lots")
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
extract:
  subreddit: fromfile
  limit: 50
`)
	t.Setenv("REDDITETL_SUBREDDIT", "fromenv")

	cfg, err := Load(path, map[string]interface{}{"limit": 7})
	require.NoError(t, err)

	assert.Equal(t, "fromenv", cfg.Extract.Subreddit)
	assert.Equal(t, 7, cfg.Extract.Limit)
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad time filter", func(c *Config) { c.Extract.TimeFilter = "fortnight" }, true},
		{"negative limit", func(c *Config) { c.Extract.Limit = -1 }, true},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }, true},
		{"bad driver", func(c *Config) { c.Warehouse.Driver = "mysql" }, true},
		{"bad table", func(c *Config) { c.Warehouse.Table = "reddit; drop table x" }, true},
		{"negative max errors", func(c *Config) { c.Warehouse.MaxErrors = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"sqlite driver", func(c *Config) { c.Warehouse.Driver = "sqlite" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireStages(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.RequireReddit())
	assert.Error(t, cfg.RequireStorage())
	assert.Error(t, cfg.RequireWarehouse())

	cfg.Reddit.ClientID = "id"
	cfg.Reddit.ClientSecret = "secret"
	cfg.AWS.BucketName = "bucket"
	cfg.Warehouse.Host = "cluster.example.com"
	cfg.Warehouse.Database = "dev"
	cfg.Warehouse.User = "awsuser"
	cfg.Warehouse.RoleName = "RedShiftLoadRole"
	cfg.Warehouse.AccountID = "123456789012"

	assert.NoError(t, cfg.RequireReddit())
	assert.NoError(t, cfg.RequireStorage())
	assert.NoError(t, cfg.RequireWarehouse())

	local := DefaultConfig()
	local.Warehouse.Driver = "sqlite"
	assert.Error(t, local.RequireWarehouse())
	local.Warehouse.Path = "warehouse.db"
	assert.NoError(t, local.RequireWarehouse())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Extract.Subreddit = "golang"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "golang", loaded.Extract.Subreddit)
	assert.Equal(t, cfg.Retry, loaded.Retry)
}
