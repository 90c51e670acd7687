package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/book-ingest/internal/embedding"
	"github.com/cuongbtq/book-ingest/internal/quality"
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
			wantErr:  false,
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
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "books_db", cfg.Database.Database)
				assert.Equal(t, "ingest_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "ingest_queue", cfg.RabbitMQ.Queue.Name)
				assert.True(t, cfg.RabbitMQ.Queue.DeadLetter)
				assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
				assert.Equal(t, "book-ingest", cfg.App.Name)
				assert.Equal(t, 30*time.Minute, cfg.Worker.JobTimeout)
				assert.Equal(t, RetryConfig{MaxAttempts: 5, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Minute, Multiplier: 2}, cfg.Retry)
				assert.Equal(t, []string{"kabis", "library"}, cfg.Pipeline.Catalogs)
				assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
				assert.Equal(t, time.Minute, cfg.RateLimit.Window)
			}
		})
	}
}

func TestLoad_QualityDefaults(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	def := quality.DefaultThresholds()
	assert.Equal(t, 800, cfg.Quality.MinLength)
	assert.Equal(t, 0.5, cfg.Quality.MaxRepetition)
	assert.Equal(t, def.MinEntropy, cfg.Quality.MinEntropy)
	assert.Equal(t, def.ScanSamplePages, cfg.Quality.ScanSamplePages)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("BOOK_INGEST_TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "books_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "ingest_exchange",
			},
			Queue: QueueConfig{
				Name: "ingest_queue",
			},
		},
		Worker: WorkerConfig{
			Concurrency:     2,
			JobTimeout:      time.Minute,
			ShutdownTimeout: time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    time.Minute,
			Multiplier:  2,
		},
		Pipeline: PipelineConfig{
			UploadDir:    "/tmp/uploads",
			ChunkSize:    1000,
			ChunkOverlap: 100,
		},
		Embedding: embedding.Config{
			Host:  "http://localhost:11434/v1",
			Model: "nomic-embed-text",
		},
		Index: IndexConfig{InMemory: true},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid server port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "invalid server port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "empty database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "invalid database port", mutate: func(c *Config) { c.Database.Port = -1 }, errString: "invalid database port"},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "empty rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "empty exchange name", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "empty queue name", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{name: "rate limit without window", mutate: func(c *Config) { c.RateLimit.Requests = 10 }, errString: "rate_limit window"},
		{name: "worker settings are not required", mutate: func(c *Config) { c.Worker = WorkerConfig{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
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
		{name: "server port is not required", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency"},
		{name: "zero job timeout", mutate: func(c *Config) { c.Worker.JobTimeout = 0 }, errString: "worker job_timeout"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "worker shutdown_timeout"},
		{name: "zero max attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, errString: "retry max_attempts"},
		{name: "max delay below base", mutate: func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, errString: "retry delays"},
		{name: "shrinking multiplier", mutate: func(c *Config) { c.Retry.Multiplier = 0.5 }, errString: "retry multiplier"},
		{name: "no upload dir", mutate: func(c *Config) { c.Pipeline.UploadDir = "" }, errString: "upload_dir"},
		{name: "overlap not below size", mutate: func(c *Config) { c.Pipeline.ChunkOverlap = 1000 }, errString: "chunk_overlap"},
		{name: "no index path", mutate: func(c *Config) { c.Index = IndexConfig{} }, errString: "index path"},
		{name: "no embedding model", mutate: func(c *Config) { c.Embedding.Model = "" }, errString: "embedding model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
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
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
