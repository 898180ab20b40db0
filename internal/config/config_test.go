package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, StorageBackendPostgres, cfg.Storage.Backend)
			assert.Equal(t, "reviews_db", cfg.Database.Database)
			assert.Equal(t, "review_fetch_triggers", cfg.RabbitMQ.Queue)
			assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)
			assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
			assert.True(t, cfg.Scheduler.RunOnStart)
			assert.Equal(t, 4, cfg.Worker.FetchConcurrency)
		})
	}
}

func TestLoad_KeepsDefaultsForOmittedKeys(t *testing.T) {
	t.Setenv(EnvProviderAPIKey, "")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Provider.BaseURL, cfg.Provider.BaseURL)
	assert.Equal(t, defaults.Provider.Host, cfg.Provider.Host)
	assert.Equal(t, defaults.Worker.JobTimeout, cfg.Worker.JobTimeout)
	assert.Equal(t, defaults.RabbitMQ.RoutingKey, cfg.RabbitMQ.RoutingKey)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvProviderAPIKey, "env-key")
	t.Setenv(EnvDatabasePassword, "env-db-pass")
	t.Setenv(EnvRabbitMQPassword, "env-mq-pass")
	t.Setenv(EnvDefaultUserToken, "env-token")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Provider.APIKey)
	assert.Equal(t, "env-db-pass", cfg.Database.Password)
	assert.Equal(t, "env-mq-pass", cfg.RabbitMQ.Password)
	assert.Equal(t, "env-token", cfg.Auth.DefaultUser.Token)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.False(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 1, cfg.Worker.FetchConcurrency)
	assert.Equal(t, StorageBackendFile, cfg.Storage.Backend)
	assert.False(t, cfg.RabbitMQ.Enabled)

	// workers need no secrets beyond the provider key
	assert.NoError(t, cfg.ValidateWorkerConfig())
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid file backend",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "mongo" },
			errString: "unknown storage backend",
		},
		{
			name:      "file backend without data dir",
			mutate:    func(c *Config) { c.Storage.DataDir = "" },
			errString: "storage data_dir is required",
		},
		{
			name: "sqlite backend without path",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendSQLite
				c.Storage.SQLitePath = ""
			},
			errString: "storage sqlite_path is required",
		},
		{
			name: "postgres backend without host",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendPostgres
				c.Database.Database = "reviews_db"
			},
			errString: "database host is required",
		},
		{
			name: "postgres backend without database name",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendPostgres
				c.Database.Host = "localhost"
			},
			errString: "database name is required",
		},
		{
			name: "rabbitmq enabled without host",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = true
			},
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq enabled without queue",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Queue = ""
			},
			errString: "rabbitmq queue is required",
		},
		{
			name: "default user without token",
			mutate: func(c *Config) {
				c.Auth.DefaultUser.Token = ""
			},
			errString: "auth default_user token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.DefaultUser.Token = "admin123"
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:      "zero interval",
			mutate:    func(c *Config) { c.Scheduler.Interval = 0 },
			errString: "scheduler interval must be greater than 0",
		},
		{
			name:      "zero fetch concurrency",
			mutate:    func(c *Config) { c.Worker.FetchConcurrency = 0 },
			errString: "worker fetch_concurrency must be greater than 0",
		},
		{
			name:      "zero provider timeout",
			mutate:    func(c *Config) { c.Provider.Timeout = 0 },
			errString: "provider timeout must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "missing base url",
			mutate:    func(c *Config) { c.Provider.BaseURL = "" },
			errString: "provider base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
