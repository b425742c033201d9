/*
Package config loads the engine configuration.

SOURCES (later wins):
  1. Defaults in setDefaults
  2. Optional YAML file (config path or ./agency.yaml)
  3. Optional .env file, copied into the environment when unset
  4. Environment variables with the AGENCY_ prefix
     (AGENCY_SERVER_PORT, AGENCY_SLA_WARNING_HOURS, ...)

SEE ALSO:
  - cmd/server/main.go: Flag overrides
  - cli/root.go: Same loader for opsctl
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/sla"
)

const (
	EnvPrefix = "AGENCY"
	envFile   = ".env"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	SLA       SLAConfig       `mapstructure:"sla"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SLAConfig mirrors sla.Config with config-file names.
type SLAConfig struct {
	WarningHours       float64 `mapstructure:"warning_hours"`
	WarningFraction    float64 `mapstructure:"warning_fraction"`
	BudgetWarningRatio float64 `mapstructure:"budget_warning_ratio"`
}

type EngineConfig struct {
	// TimeZone decides which calendar day an instant falls on.
	TimeZone string `mapstructure:"time_zone"`
	// ProrateMethod is linear or none.
	ProrateMethod string `mapstructure:"prorate_method"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith reads configuration into v, so callers can bind flags first.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("agency")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.path", "agency.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	def := sla.DefaultConfig()
	v.SetDefault("sla.warning_hours", def.WarningHours)
	v.SetDefault("sla.warning_fraction", def.WarningFraction)
	v.SetDefault("sla.budget_warning_ratio", def.BudgetWarningRatio)

	v.SetDefault("engine.time_zone", "UTC")
	v.SetDefault("engine.prorate_method", string(generic.ProrateLinear))

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",
		"database.path",
		"logging.level",
		"logging.format",
		"sla.warning_hours",
		"sla.warning_fraction",
		"sla.budget_warning_ratio",
		"engine.time_zone",
		"engine.prorate_method",
		"scheduler.enabled",
		"scheduler.interval",
		"cors.allowed_origins",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Validate ensures required fields are present and thresholds are sane.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := generic.ParseProrateMethod(c.Engine.ProrateMethod); err != nil {
		return fmt.Errorf("engine.prorate_method: %w", err)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}
	return c.SLARules().Validate()
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location resolves engine.time_zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("engine.time_zone: %w", err)
	}
	return loc, nil
}

// Prorate returns the validated engine.prorate_method.
func (c Config) Prorate() generic.ProrateMethod {
	m, err := generic.ParseProrateMethod(c.Engine.ProrateMethod)
	if err != nil {
		return generic.ProrateLinear
	}
	return m
}

// SLARules converts the sla section into classifier thresholds.
func (c Config) SLARules() sla.Config {
	return sla.Config{
		WarningHours:       c.SLA.WarningHours,
		WarningFraction:    c.SLA.WarningFraction,
		BudgetWarningRatio: c.SLA.BudgetWarningRatio,
	}
}
