package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	WarehouseBigQuery = "bigquery"
	WarehousePostgres = "postgres"

	CacheLocal = "local"
	CacheRedis = "redis"
)

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// path to the JSON file with filter specs, metrics and pages
	DashboardConfigPath string `toml:"dashboard_config_path"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// warehouse
	Warehouse               string `toml:"warehouse"`
	BigQueryProjectID       string `toml:"bigquery_project_id"`
	BigQueryCredentialsFile string `toml:"bigquery_credentials_file"`
	PostgresHost            string `toml:"postgres_host"`
	PostgresPort            string `toml:"postgres_port"`
	PostgresDBName          string `toml:"postgres_db_name"`

	// query results cache
	QueryCache       string   `toml:"query_cache"`
	QueryCacheTTL    Duration `toml:"query_cache_ttl"`
	QueryCacheSizeMB int      `toml:"query_cache_size_mb"`
	QueryTimeout     Duration `toml:"query_timeout"`

	// redis, optional unless used for the cache or rate limiting
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	RateLimitAllowedPerMin int `toml:"rate_limit_allowed_per_min"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

// Duration lets toml values look like "10m" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the config for env, with defaults applied.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config %s: %w", path, err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not found", env)
	}

	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s config: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8501
	}
	if c.Warehouse == "" {
		c.Warehouse = WarehouseBigQuery
	}
	if c.QueryCache == "" {
		c.QueryCache = CacheLocal
	}
	if c.QueryCacheTTL.Duration == 0 {
		c.QueryCacheTTL.Duration = 10 * time.Minute
	}
	if c.QueryCacheSizeMB == 0 {
		c.QueryCacheSizeMB = 64
	}
	if c.QueryTimeout.Duration == 0 {
		c.QueryTimeout.Duration = time.Minute
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	if c.DashboardConfigPath == "" {
		return errors.New("dashboard_config_path not set")
	}

	switch c.Warehouse {
	case WarehouseBigQuery:
		if c.BigQueryProjectID == "" {
			return errors.New("bigquery_project_id not set")
		}
	case WarehousePostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" {
			return errors.New("postgres_host and postgres_db_name must be set")
		}
	default:
		return fmt.Errorf("unknown warehouse: %s", c.Warehouse)
	}

	switch c.QueryCache {
	case CacheLocal:
	case CacheRedis:
		if !c.RedisEnabled() {
			return errors.New("query_cache is redis, but redis_host not set")
		}
	default:
		return fmt.Errorf("unknown query cache: %s", c.QueryCache)
	}

	if c.RateLimitAllowedPerMin > 0 && !c.RedisEnabled() {
		return errors.New("rate limiting requires redis_host")
	}

	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
