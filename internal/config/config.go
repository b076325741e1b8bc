package config

import (
	"os"
	"strconv"
	"strings"

	"coldchain-monitor/pipeline/internal/domain"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres (TimescaleDB)
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBReadConns  int32
	DBWriteConns int32

	// Redis (queues, threshold store, notifications)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Queue streams
	IntakeStream       string
	OutcomeStream      string
	ConsumerGroup      string
	ConsumerName       string
	PollWaitSeconds    int
	MaxBatch           int
	VisibilitySeconds  int
	RetentionHours     int
	PollBackoffSeconds int

	// Evaluation
	Trend             domain.TrendConfig
	DefaultThresholds domain.Thresholds

	// Notification
	NotifyChannel string
	NotifyEnabled bool

	// Gateway auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8001"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "coldchain_user"),
		DBPassword:   getEnv("DB_PASSWORD", "coldchain_password"),
		DBName:       getEnv("DB_NAME", "coldchain_monitor"),
		DBReadConns:  int32(getEnvInt("DB_READ_CONNS", 4)),
		DBWriteConns: int32(getEnvInt("DB_WRITE_CONNS", 12)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		IntakeStream:       getEnv("INTAKE_STREAM", "readings:intake"),
		OutcomeStream:      getEnv("OUTCOME_STREAM", "readings:outcome"),
		ConsumerGroup:      getEnv("CONSUMER_GROUP", "pipeline"),
		ConsumerName:       getEnv("CONSUMER_NAME", defaultConsumerName()),
		PollWaitSeconds:    getEnvInt("POLL_WAIT_SECONDS", 5),
		MaxBatch:           getEnvInt("MAX_BATCH", 10),
		VisibilitySeconds:  getEnvInt("VISIBILITY_SECONDS", 30),
		RetentionHours:     getEnvInt("RETENTION_HOURS", 24),
		PollBackoffSeconds: getEnvInt("POLL_BACKOFF_SECONDS", 3),

		Trend: domain.TrendConfig{
			WindowMinutes:    getEnvInt("TREND_WINDOW_MINUTES", domain.DefaultTrendConfig.WindowMinutes),
			MaxSamples:       getEnvInt("TREND_MAX_SAMPLES", domain.DefaultTrendConfig.MaxSamples),
			MinSamples:       getEnvInt("TREND_MIN_SAMPLES", domain.DefaultTrendConfig.MinSamples),
			MinRisingSteps:   getEnvInt("TREND_MIN_RISING_STEPS", domain.DefaultTrendConfig.MinRisingSteps),
			MinTotalIncrease: getEnvFloat("TREND_MIN_TOTAL_INCREASE", domain.DefaultTrendConfig.MinTotalIncrease),
		},
		DefaultThresholds: domain.Thresholds{
			Warning:  getEnvFloat("DEFAULT_WARNING_THRESHOLD", -10),
			Critical: getEnvFloat("DEFAULT_CRITICAL_THRESHOLD", -5),
			Target:   getEnvFloat("DEFAULT_TARGET_VALUE", -18),
		},

		NotifyChannel: getEnv("NOTIFY_CHANNEL", "alerts:notify"),
		NotifyEnabled: getEnvBool("NOTIFY_ENABLED", true),

		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil {
		return "consumer-1"
	}
	return host
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
