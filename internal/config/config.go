package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

// EnvPrefix is prepended to every key read by FromEnv.
const EnvPrefix = "ARCREVIEW_"

// DefaultEnvFiles are loaded, when present, before the environment is parsed.
// Variables already set in the process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR"` // empty disables the health server

	// DB
	Env         string `env:"ENV" envDefault:"dev"` // "dev" | "prod"
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"./data/arcreview.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	SeedDev     bool   `env:"SEED_DEV" envDefault:"false"`

	// Review deadlines
	ReviewWindowDays      int           `env:"REVIEW_WINDOW_DAYS" envDefault:"30"`
	DeadlineWarningDays   int           `env:"DEADLINE_WARNING_DAYS" envDefault:"7"`
	DeadlineSweepInterval time.Duration `env:"DEADLINE_SWEEP_INTERVAL" envDefault:"1m"` // 0 = sweep on every request

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Notifications
	NotifyBackend string        `env:"NOTIFY_BACKEND" envDefault:"log"` // "log" | "redis"
	RedisURL      string        `env:"REDIS_URL"`
	RedisChannel  string        `env:"REDIS_CHANNEL" envDefault:"arcreview:notifications"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// HTTP edge
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimit   string   `env:"RATE_LIMIT"` // e.g. "120-M"; empty disables
}

// FromEnv loads DefaultEnvFiles and parses the ARCREVIEW_ environment.
func FromEnv() (Config, error) {
	return Load(DefaultEnvFiles...)
}

// Load is FromEnv with an explicit list of .env files. Missing files are
// skipped.
func Load(files ...string) (Config, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, errors.Wrap(err, "load env files")
		}
	}

	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.NotifyBackend = strings.ToLower(strings.TrimSpace(c.NotifyBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("%sDB_DRIVER must be sqlite or postgres, got %q", EnvPrefix, c.DBDriver)
	}
	if c.DBDriver == "postgres" && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.Errorf("%sDATABASE_URL is required when DB_DRIVER is postgres", EnvPrefix)
	}
	if c.ReviewWindowDays <= 0 {
		return errors.Errorf("%sREVIEW_WINDOW_DAYS must be positive, got %d", EnvPrefix, c.ReviewWindowDays)
	}
	if c.DeadlineWarningDays <= 0 {
		return errors.Errorf("%sDEADLINE_WARNING_DAYS must be positive, got %d", EnvPrefix, c.DeadlineWarningDays)
	}
	if c.DeadlineSweepInterval < 0 {
		return errors.Errorf("%sDEADLINE_SWEEP_INTERVAL must not be negative", EnvPrefix)
	}
	switch c.NotifyBackend {
	case "log":
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.Errorf("%sREDIS_URL is required when NOTIFY_BACKEND is redis", EnvPrefix)
		}
	default:
		return errors.Errorf("%sNOTIFY_BACKEND must be log or redis, got %q", EnvPrefix, c.NotifyBackend)
	}
	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return errors.Wrapf(err, "%sRATE_LIMIT", EnvPrefix)
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("%sLOG_FORMAT must be text or json, got %q", EnvPrefix, c.LogFormat)
	}
	return nil
}

// ReviewWindow is the statutory review period.
func (c Config) ReviewWindow() time.Duration {
	return time.Duration(c.ReviewWindowDays) * 24 * time.Hour
}
