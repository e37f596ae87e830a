package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rlmodels "classlog/internal/ratelimit/models"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogFormat string
	LogLevel  string

	Database  DatabaseConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Vision    VisionConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig points at the postgres database holding class logs.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the shared throttle store. An empty URL keeps
// throttle windows in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig selects the audit sink. No brokers means log-only auditing.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// VisionConfig configures the photo analysis service.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// RateLimitConfig holds the per operation class budgets.
type RateLimitConfig struct {
	Classes       rlmodels.Classes
	SweepInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present;
// real environment variables take precedence over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:      getEnv("CLASSLOG_ADDR", ":8080"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "classlog.audit"),
		},
		Vision: VisionConfig{
			APIKey:  strings.TrimSpace(os.Getenv("VISION_API_KEY")),
			BaseURL: getEnv("VISION_BASE_URL", "https://api.openai.com"),
			Model:   getEnv("VISION_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("VISION_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Classes:       rlmodels.DefaultClasses(),
			SweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
		},
	}

	if path := os.Getenv("RATE_LIMIT_CONFIG_FILE"); path != "" {
		classes, err := LoadRateLimitFile(path)
		if err != nil {
			return Server{}, err
		}
		for name, limit := range classes {
			cfg.RateLimit.Classes[name] = limit
		}
	}

	return cfg, nil
}

type rateLimitFile struct {
	Classes map[string]struct {
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
	} `yaml:"classes"`
}

// LoadRateLimitFile reads operation class budgets from a YAML file:
//
//	classes:
//	  verify:
//	    max_requests: 30
//	    window: 1h
func LoadRateLimitFile(path string) (rlmodels.Classes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit config: %w", err)
	}
	return ParseRateLimits(raw)
}

// ParseRateLimits decodes the YAML form accepted by LoadRateLimitFile.
func ParseRateLimits(raw []byte) (rlmodels.Classes, error) {
	var file rateLimitFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rate limit config: %w", err)
	}
	out := make(rlmodels.Classes, len(file.Classes))
	for name, c := range file.Classes {
		window, err := time.ParseDuration(c.Window)
		if err != nil {
			return nil, fmt.Errorf("rate limit class %q: invalid window %q: %w", name, c.Window, err)
		}
		if c.MaxRequests <= 0 || window <= 0 {
			return nil, fmt.Errorf("rate limit class %q: max_requests and window must be positive", name)
		}
		out[rlmodels.OperationClass(name)] = rlmodels.Limit{MaxRequests: c.MaxRequests, Window: window}
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
