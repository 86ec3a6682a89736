package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv keeps a developer's shell from leaking into Load.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "DB_PASSWORD", "RABBITMQ_URL", "RABBITMQ_PASSWORD",
		"GEMINI_API_KEY", "AUTH_JWT_SECRET", "INTERNAL_API_SECRET",
		"JOB_TRIGGER_API_KEY", "STORAGE_SERVICE_KEY", "STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

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
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, "careerprep", cfg.Database.Database)
			assert.Equal(t, "analysis_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "analysis_jobs", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
			assert.Equal(t, "careerprep-api", cfg.App.Name)
			assert.Equal(t, 3*time.Minute, cfg.Worker.JobTimeout)
			assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/invalid_port.yaml")
	require.NoError(t, err)

	assert.Equal(t, MaxTriggerBatchSize, cfg.Scheduler.BatchSize)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxFileBytes)
	assert.Equal(t, 30*time.Second, cfg.Worker.HeartbeatInterval)
	assert.Equal(t, "https://api.stripe.com", cfg.Payment.APIBaseURL)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("JOB_TRIGGER_API_KEY", "env-trigger")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/careerprep")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-trigger", cfg.Scheduler.TriggerAPIKey)
	assert.Equal(t, "gemini-key", cfg.AI.APIKey)
	assert.Equal(t, "postgres://u:p@db/careerprep", cfg.Database.URL)
	// untouched values keep the file contents
	assert.Equal(t, "internal-secret", cfg.Auth.InternalSecret)
}

func TestApplyEnv_IgnoresEmpty(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "file"}}
	cfg.applyEnv(func(string) string { return "" })
	assert.Equal(t, "file", cfg.Auth.JWTSecret)
}

func validAPIConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "careerprep",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "analysis_exchange"},
			Queue:    QueueConfig{Name: "analysis_jobs"},
		},
		Scheduler: SchedulerConfig{
			BatchSize:     5,
			DispatchMode:  DispatchModeQueue,
			TriggerAPIKey: "trigger",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
		Worker: WorkerConfig{
			Concurrency:       2,
			JobTimeout:        time.Minute,
			HeartbeatInterval: 10 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
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
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name: "database url replaces host settings",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{URL: "postgres://db/careerprep"}
			},
		},
		{
			name:      "empty rabbitmq host in queue mode",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq not needed in inline mode",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{}
				c.Scheduler.DispatchMode = DispatchModeInline
			},
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "batch size above cap",
			mutate:    func(c *Config) { c.Scheduler.BatchSize = 6 },
			errString: "batch_size must be between 1 and 5",
		},
		{
			name:      "unknown dispatch mode",
			mutate:    func(c *Config) { c.Scheduler.DispatchMode = "carrier-pigeon" },
			errString: "unknown scheduler dispatch_mode",
		},
		{
			name:      "missing jwt secret",
			mutate:    func(c *Config) { c.Auth.JWTSecret = "" },
			errString: "jwt_secret is required",
		},
		{
			name:      "missing trigger key",
			mutate:    func(c *Config) { c.Scheduler.TriggerAPIKey = "" },
			errString: "trigger_api_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "negative poll interval",
			mutate:    func(c *Config) { c.Worker.PollInterval = -time.Second },
			errString: "poll_interval must not be negative",
		},
		{
			name:      "rabbitmq always required",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	clearEnv(t)

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
