// Package config provides runtime configuration values for the server and
// the client tools.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration knobs for the HTTP server, its backends and the
// API client.
type Config struct {
	HTTPAddr                string        `yaml:"http_addr"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout"`
	InitialWorkerCount      int           `yaml:"worker_count"`
	WorkerMin               int           `yaml:"worker_min"`
	WorkerMax               int           `yaml:"worker_max"`
	ScaleInterval           time.Duration `yaml:"scale_interval"`
	ScaleUpBacklogPerWorker int           `yaml:"scale_up_backlog_per_worker"`
	ScaleDownIdleTicks      int           `yaml:"scale_down_idle_ticks"`
	QueueHighWatermark      int           `yaml:"queue_high_watermark"`
	LogLevel                string        `yaml:"log_level"`

	APIBaseURL    string        `yaml:"api_url"`
	ClientTimeout time.Duration `yaml:"client_timeout"`

	StoreDriver string `yaml:"store_driver"`
	StoreDSN    string `yaml:"store_dsn"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	RateLimitRPS      int    `yaml:"rate_limit_rps"`
	RateLimitBurst    int    `yaml:"rate_limit_burst"`
	CORSOrigin        string `yaml:"cors_origin"`
	ResponseEnvelope  string `yaml:"response_envelope"`
	LowStockThreshold int    `yaml:"low_stock_threshold"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, def time.Duration) time.Duration {
	ms := atoienv(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, def time.Duration) time.Duration {
	sec := atoienv(key, -1)
	if sec < 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}

func listenv(key string, def []string) []string {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:                ":8080",
		ShutdownTimeout:         15 * time.Second,
		WorkerMin:               3,
		WorkerMax:               8,
		ScaleInterval:           500 * time.Millisecond,
		ScaleUpBacklogPerWorker: 100,
		ScaleDownIdleTicks:      6,
		QueueHighWatermark:      5000,
		LogLevel:                "info",
		ClientTimeout:           10 * time.Second,
		StoreDriver:             "memory",
		CacheTTL:                30 * time.Second,
		KafkaTopic:              "inventory.changes",
		RateLimitBurst:          20,
		ResponseEnvelope:        "bare",
		LowStockThreshold:       10,
	}
}

// Load collects configuration from environment with defaults.
func Load() Config {
	c := Default()
	c.applyEnv()
	return c
}

// LoadFile reads a YAML file over the defaults, then applies environment
// overrides.
func LoadFile(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	c.applyEnv()
	return c, nil
}

// FromEnv loads CONFIG_FILE when it is set and the environment otherwise.
func FromEnv() (Config, error) {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return LoadFile(p)
	}
	return Load(), nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.ShutdownTimeout = durenvs("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.WorkerMin = atoienv("WORKER_MIN", c.WorkerMin)
	c.WorkerMax = atoienv("WORKER_MAX", c.WorkerMax)
	if c.InitialWorkerCount == 0 {
		c.InitialWorkerCount = c.WorkerMin
	}
	c.InitialWorkerCount = atoienv("WORKER_COUNT", c.InitialWorkerCount)
	c.ScaleInterval = durenvms("SCALE_INTERVAL_MS", c.ScaleInterval)
	c.ScaleUpBacklogPerWorker = atoienv("SCALE_UP_BACKLOG_PER_WORKER", c.ScaleUpBacklogPerWorker)
	c.ScaleDownIdleTicks = atoienv("SCALE_DOWN_IDLE_TICKS", c.ScaleDownIdleTicks)
	c.QueueHighWatermark = atoienv("QUEUE_HIGH_WATERMARK", c.QueueHighWatermark)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	c.APIBaseURL = getenv("API_URL", c.APIBaseURL)
	c.ClientTimeout = durenvms("CLIENT_TIMEOUT_MS", c.ClientTimeout)

	c.StoreDriver = getenv("STORE_DRIVER", c.StoreDriver)
	c.StoreDSN = getenv("STORE_DSN", c.StoreDSN)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = atoienv("REDIS_DB", c.RedisDB)
	c.CacheTTL = durenvms("CACHE_TTL_MS", c.CacheTTL)

	c.KafkaBrokers = listenv("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)

	c.RateLimitRPS = atoienv("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = atoienv("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.CORSOrigin = getenv("CORS_ORIGIN", c.CORSOrigin)
	c.ResponseEnvelope = getenv("RESPONSE_ENVELOPE", c.ResponseEnvelope)
	c.LowStockThreshold = atoienv("LOW_STOCK_THRESHOLD", c.LowStockThreshold)
}
