package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	Postgres struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"postgres"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`

	LLM struct {
		Provider      string        `yaml:"provider" default:"claude"`
		APIKey        string        `yaml:"api_key"`
		Model         string        `yaml:"model" default:"claude-3-haiku-20240307"`
		MaxTokens     int           `yaml:"max_tokens" default:"4096"`
		Temperature   float32       `yaml:"temperature" default:"0.1"`
		ExpandTimeout time.Duration `yaml:"expand_timeout" default:"12s"`
		ScoreTimeout  time.Duration `yaml:"score_timeout" default:"60s"`
		RateLimit     int           `yaml:"rate_limit" default:"30"` // requests per minute
	} `yaml:"llm"`

	Workers struct {
		PoolSize    int           `yaml:"pool_size" default:"5"`
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		BaseBackoff time.Duration `yaml:"base_backoff" default:"10s"`
		PollTimeout time.Duration `yaml:"poll_timeout" default:"2s"`
		Retention   time.Duration `yaml:"retention" default:"24h"`
	} `yaml:"workers"`

	Scheduler struct {
		Enabled        bool          `yaml:"enabled" default:"true"`
		SweepInterval  time.Duration `yaml:"sweep_interval" default:"1h"`
		Lookback       time.Duration `yaml:"lookback" default:"24h"`
		BatchSize      int           `yaml:"batch_size" default:"20"`
		DefaultMaxJobs int           `yaml:"default_max_jobs" default:"10"`
	} `yaml:"scheduler"`

	Search struct {
		DefaultLimit int           `yaml:"default_limit" default:"10"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"4h"`
	} `yaml:"search"`

	Expansion struct {
		ConfidenceThreshold float64       `yaml:"confidence_threshold" default:"0.8"`
		CacheTTL            time.Duration `yaml:"cache_ttl" default:"168h"` // 7 days
	} `yaml:"expansion"`

	Digest struct {
		FlushSpec   string        `yaml:"flush_spec" default:"0 18 * * *"` // daily, 18:00
		NotifierURL string        `yaml:"notifier_url"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries  int           `yaml:"max_retries" default:"3"`
	} `yaml:"digest"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}

	// Set defaults
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Postgres.URL = "postgres://localhost:5432/applyflow"
	config.Postgres.Timeout = 10 * time.Second

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second

	config.LLM.Provider = "claude"
	config.LLM.MaxTokens = 4096
	config.LLM.Temperature = 0.1
	config.LLM.ExpandTimeout = 12 * time.Second
	config.LLM.ScoreTimeout = 60 * time.Second
	config.LLM.RateLimit = 30

	config.Workers.PoolSize = 5
	config.Workers.MaxAttempts = 3
	config.Workers.BaseBackoff = 10 * time.Second
	config.Workers.PollTimeout = 2 * time.Second
	config.Workers.Retention = 24 * time.Hour

	config.Scheduler.Enabled = true
	config.Scheduler.SweepInterval = 1 * time.Hour
	config.Scheduler.Lookback = 24 * time.Hour
	config.Scheduler.BatchSize = 20
	config.Scheduler.DefaultMaxJobs = 10

	config.Search.DefaultLimit = 10
	config.Search.CacheTTL = 4 * time.Hour

	config.Expansion.ConfidenceThreshold = 0.8
	config.Expansion.CacheTTL = 7 * 24 * time.Hour

	config.Digest.FlushSpec = "0 18 * * *"
	config.Digest.Timeout = 30 * time.Second
	config.Digest.MaxRetries = 3

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			// Expand environment variables in the YAML content
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		c.Postgres.URL = databaseURL
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		c.LLM.APIKey = apiKey
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if sweepInterval := os.Getenv("SWEEP_INTERVAL"); sweepInterval != "" {
		if d, err := time.ParseDuration(sweepInterval); err == nil {
			c.Scheduler.SweepInterval = d
		}
	}

	if schedulerEnabled := os.Getenv("SCHEDULER_ENABLED"); schedulerEnabled != "" {
		c.Scheduler.Enabled = schedulerEnabled == "true" || schedulerEnabled == "1"
	}

	if notifierURL := os.Getenv("DIGEST_NOTIFIER_URL"); notifierURL != "" {
		c.Digest.NotifierURL = notifierURL
	}

	if flushSpec := os.Getenv("DIGEST_FLUSH_SPEC"); flushSpec != "" {
		c.Digest.FlushSpec = flushSpec
	}

	if poolSize := os.Getenv("WORKER_POOL_SIZE"); poolSize != "" {
		if n, err := strconv.Atoi(poolSize); err == nil {
			c.Workers.PoolSize = n
		}
	}

	if maxAttempts := os.Getenv("WORKER_MAX_ATTEMPTS"); maxAttempts != "" {
		if n, err := strconv.Atoi(maxAttempts); err == nil {
			c.Workers.MaxAttempts = n
		}
	}
}
