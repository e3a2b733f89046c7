package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const envProduction = "production"

// Config is the crmctl configuration, read from config.toml with CRM_*
// environment overrides.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development, test or production
}

// DatabaseConfig selects the driver and sizes the connection pool.
// Host through SSLMode apply to postgres only.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	SQLitePath      string `mapstructure:"sqlite_path"` // file path or ":memory:"
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// TelemetryConfig controls the OTLP exporters and database tracing
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults registers every key so that CRM_* variables reach Unmarshal
var defaults = map[string]any{
	"app.name": "crm-backend",
	"app.env":  "development",

	"database.driver":             DriverPostgres,
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "crm",
	"database.sslmode":            "disable",
	"database.sqlite_path":        "crm.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.auto_migrate":       false,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "crm-backend",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads ./config.toml or /etc/crm/config.toml when present. CRM_*
// variables (CRM_DATABASE_PASSWORD for database.password) take precedence.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit file, which must exist
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crm")
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every inconsistent setting at once
func (c *Config) Validate() error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	require(db.Driver == DriverPostgres || db.Driver == DriverSQLite,
		"database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, db.Driver)
	require(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	require(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	require(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	ratio := c.Telemetry.SamplingRatio
	require(ratio >= 0 && ratio <= 1, "telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", ratio)

	if c.Production() {
		require(db.Driver != DriverSQLite, "database.driver sqlite is not supported in production")
		require(db.Password != "", "database.password is required in production")
		require(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		require(!db.AutoMigrate, "database.auto_migrate must be false in production (use crmctl migrate up)")
		require(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}

	return errors.Join(errs...)
}

// Production reports whether the app runs with production safeguards
func (c *Config) Production() bool {
	return c.App.Env == envProduction
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// SQLiteDSN returns the sqlite connection string with foreign key
// enforcement switched on.
func (d *DatabaseConfig) SQLiteDSN() string {
	return d.SQLitePath + "?_foreign_keys=on"
}

// InMemory reports whether the sqlite database lives only in memory
func (d *DatabaseConfig) InMemory() bool {
	return d.Driver == DriverSQLite && strings.HasPrefix(d.SQLitePath, ":memory:")
}
