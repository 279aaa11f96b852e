package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"stormguard/internal/model"
)

type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Generation GenerationConfig
	Output     OutputConfig
	State      StateConfig
	Kafka      KafkaConfig
	Postgres   PostgresConfig
	Metrics    MetricsConfig
	Forecast   ForecastConfig
}

type AppConfig struct {
	Env string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
}

type GenerationConfig struct {
	Stores   int
	Products int
	Start    time.Time
	End      time.Time
	Seed     int64
	Workers  int
	// AsOf is the inventory snapshot day; zero means the day after the last sale.
	AsOf time.Time
}

type OutputConfig struct {
	SnapshotDir  string
	ManifestDir  string
	ChangelogDir string
}

type StateConfig struct {
	Backend   string // memory|pebble
	PebbleDir string
}

type KafkaConfig struct {
	Bootstrap       string
	ChangelogTopic  string
	ManifestTopic   string
	ManifestKey     string
	TopicPrefix     string
	TransactionalID string
}

type PostgresConfig struct {
	URL      string
	MaxConns int
}

type MetricsConfig struct {
	Addr string
}

type ForecastConfig struct {
	SKUs    []string
	Horizon int
}

func LoadEnv() *Config {
	return &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			Development:       getEnvBool("LOGGER_DEVELOPMENT", false),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Generation: GenerationConfig{
			Stores:   getEnvInt("STORMGUARD_STORES", 50),
			Products: getEnvInt("STORMGUARD_PRODUCTS", 200),
			Start:    getEnvDate("STORMGUARD_START", model.Date(2023, time.January, 1)),
			End:      getEnvDate("STORMGUARD_END", model.Date(2024, time.December, 31)),
			Seed:     getEnvInt64("STORMGUARD_SEED", 42),
			Workers:  getEnvInt("STORMGUARD_WORKERS", 0),
			AsOf:     getEnvDate("STORMGUARD_AS_OF", time.Time{}),
		},
		Output: OutputConfig{
			SnapshotDir:  getEnv("STORMGUARD_SNAPSHOT_DIR", "./data/snapshots"),
			ManifestDir:  getEnv("STORMGUARD_MANIFEST_DIR", "./data/manifests"),
			ChangelogDir: getEnv("STORMGUARD_CHANGELOG_DIR", "./data/changelog"),
		},
		State: StateConfig{
			Backend:   getEnv("STORMGUARD_STATE_BACKEND", "memory"),
			PebbleDir: getEnv("STORMGUARD_PEBBLE_DIR", "./data/state"),
		},
		Kafka: KafkaConfig{
			Bootstrap:       getEnv("KAFKA_BOOTSTRAP", ""),
			ChangelogTopic:  getEnv("KAFKA_CHANGELOG_TOPIC", "stormguard.sales.changelog"),
			ManifestTopic:   getEnv("KAFKA_MANIFEST_TOPIC", "stormguard.manifest"),
			ManifestKey:     getEnv("KAFKA_MANIFEST_KEY", "stormguard-manifest-latest"),
			TopicPrefix:     getEnv("KAFKA_TOPIC_PREFIX", "stormguard."),
			TransactionalID: getEnv("KAFKA_TRANSACTIONAL_ID", "stormguard-generate"),
		},
		Postgres: PostgresConfig{
			URL:      getEnv("POSTGRES_URL", ""),
			MaxConns: getEnvInt("POSTGRES_MAX_CONNS", 4),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		Forecast: ForecastConfig{
			SKUs:    getEnvSlice("STORMGUARD_FORECAST_SKUS", []string{"SKU-0001"}),
			Horizon: getEnvInt("STORMGUARD_FORECAST_HORIZON", 7),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return splitList(value)
	}
	return fallback
}

func getEnvDate(key string, fallback time.Time) time.Time {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := model.ParseDate(value); err == nil {
			return d
		}
	}
	return fallback
}

// Brokers splits the bootstrap list.
func (k KafkaConfig) Brokers() []string {
	return splitList(k.Bootstrap)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
