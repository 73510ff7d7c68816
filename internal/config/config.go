package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Dispatch  Dispatch
	Pricing   Pricing
	Notify    Notify
	RateLimit RateLimit
	Log       Log
	Pprof     PprofConfig
}

// DB stores postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a postgres connection URL.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Redis stores redis settings. An empty Addr disables the location index and redis notifications.
type Redis struct {
	Addr     string
	Password string
	DB       int
	GeoKey   string
}

// Enabled reports whether redis is configured.
func (r Redis) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// Kafka stores broker settings. Without brokers the worker has nothing to consume.
type Kafka struct {
	Brokers            []string
	GroupID            string
	OrdersTopic        string
	NotificationsTopic string
}

// Dispatch stores coordinator and redispatch settings.
type Dispatch struct {
	OperationTimeout time.Duration
	NotifyTimeout    time.Duration
	MaxRadiusKm      float64
	Timezone         string
	RetryInterval    time.Duration
	RetryOlderThan   time.Duration
	RetryBatch       int
}

// Location resolves Timezone.
func (d Dispatch) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// Pricing stores tariff components.
type Pricing struct {
	BaseFee          float64
	PerKm            float64
	EveningBonusRate float64
	EveningFromHour  int
	EveningToHour    int
	MotorcycleBonus  float64
	CarBonus         float64
}

// Notify stores retry settings of notification sinks.
type Notify struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimit stores per-courier limiter settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Log stores logger settings.
type Log struct {
	Level   string
	Backend string
}

// PprofConfig stores pprof server settings.
type PprofConfig struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		DB:        DefaultDB(),
		Redis:     DefaultRedis(),
		Kafka:     DefaultKafka(),
		Dispatch:  DefaultDispatch(),
		Pricing:   DefaultPricing(),
		Notify:    DefaultNotify(),
		RateLimit: DefaultRateLimit(),
		Log:       DefaultLog(),
		Pprof:     DefaultPprof(),
	}

	var errs []error
	e := envReader{errs: &errs}

	e.int("PORT", &cfg.Port)

	e.str("POSTGRES_HOST", &cfg.DB.Host)
	e.str("POSTGRES_PORT", &cfg.DB.Port)
	e.str("POSTGRES_USER", &cfg.DB.User)
	e.str("POSTGRES_PASSWORD", &cfg.DB.Pass)
	e.str("POSTGRES_DB", &cfg.DB.Name)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		errs = append(errs, fmt.Errorf("POSTGRES_PORT: %w", err))
	}

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.int("REDIS_DB", &cfg.Redis.DB)
	e.str("REDIS_GEO_KEY", &cfg.Redis.GeoKey)

	e.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_GROUP_ID", &cfg.Kafka.GroupID)
	e.str("KAFKA_ORDERS_TOPIC", &cfg.Kafka.OrdersTopic)
	e.str("KAFKA_NOTIFICATIONS_TOPIC", &cfg.Kafka.NotificationsTopic)

	e.duration("DISPATCH_OPERATION_TIMEOUT", &cfg.Dispatch.OperationTimeout)
	e.duration("DISPATCH_NOTIFY_TIMEOUT", &cfg.Dispatch.NotifyTimeout)
	e.float("DISPATCH_MAX_RADIUS_KM", &cfg.Dispatch.MaxRadiusKm)
	e.str("DISPATCH_TIMEZONE", &cfg.Dispatch.Timezone)
	e.duration("DISPATCH_RETRY_INTERVAL", &cfg.Dispatch.RetryInterval)
	e.duration("DISPATCH_RETRY_OLDER_THAN", &cfg.Dispatch.RetryOlderThan)
	e.int("DISPATCH_RETRY_BATCH", &cfg.Dispatch.RetryBatch)

	e.float("PRICING_BASE_FEE", &cfg.Pricing.BaseFee)
	e.float("PRICING_PER_KM", &cfg.Pricing.PerKm)
	e.float("PRICING_EVENING_BONUS_RATE", &cfg.Pricing.EveningBonusRate)
	e.int("PRICING_EVENING_FROM_HOUR", &cfg.Pricing.EveningFromHour)
	e.int("PRICING_EVENING_TO_HOUR", &cfg.Pricing.EveningToHour)
	e.float("PRICING_MOTORCYCLE_BONUS", &cfg.Pricing.MotorcycleBonus)
	e.float("PRICING_CAR_BONUS", &cfg.Pricing.CarBonus)

	e.int("NOTIFY_MAX_ATTEMPTS", &cfg.Notify.MaxAttempts)
	e.duration("NOTIFY_BASE_DELAY", &cfg.Notify.BaseDelay)
	e.duration("NOTIFY_MAX_DELAY", &cfg.Notify.MaxDelay)

	e.bool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	e.float("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	e.int("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	e.duration("RATE_LIMIT_TTL", &cfg.RateLimit.TTL)
	e.int("RATE_LIMIT_MAX_BUCKETS", &cfg.RateLimit.MaxBuckets)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_BACKEND", &cfg.Log.Backend)

	e.bool("PPROF_ENABLED", &cfg.Pprof.Enabled)
	e.str("PPROF_ADDR", &cfg.Pprof.Addr)
	e.str("PPROF_USER", &cfg.Pprof.User)
	e.str("PPROF_PASS", &cfg.Pprof.Pass)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	fs := pflag.CommandLine
	// флаги go test и прочие чужие не считаем ошибкой
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if fs.Lookup("port") == nil {
		fs.IntP("port", "p", cfg.Port, "port to listen on")
		fs.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if fs.Changed("port") {
		cfg.Port, _ = fs.GetInt("port")
	}
	if fs.Changed("log-level") {
		cfg.Log.Level, _ = fs.GetString("log-level")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := c.Dispatch.Location(); err != nil {
		return fmt.Errorf("DISPATCH_TIMEZONE: %w", err)
	}
	if c.Dispatch.MaxRadiusKm < 0 {
		return fmt.Errorf("DISPATCH_MAX_RADIUS_KM must not be negative")
	}
	if c.Pricing.EveningFromHour < 0 || c.Pricing.EveningToHour > 23 || c.Pricing.EveningFromHour > c.Pricing.EveningToHour {
		return fmt.Errorf("invalid evening window %d-%d", c.Pricing.EveningFromHour, c.Pricing.EveningToHour)
	}
	switch strings.ToLower(c.Log.Backend) {
	case "slog", "zap":
	default:
		return fmt.Errorf("LOG_BACKEND: unknown backend %q", c.Log.Backend)
	}
	return nil
}

// envReader overrides defaults with non-empty environment values and collects parse errors.
type envReader struct {
	errs *[]error
}

func (e envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e envReader) fail(key string, err error) {
	*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e envReader) float(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e envReader) bool(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

func (e envReader) list(key string, dst *[]string) {
	if v, ok := e.lookup(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
