package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultRedis = Redis{
	Addr:   "",
	DB:     0,
	GeoKey: "dispatch:couriers:geo",
}

var defaultKafka = Kafka{
	GroupID:            "service-dispatch",
	OrdersTopic:        "orders",
	NotificationsTopic: "dispatch-notifications",
}

var defaultDispatch = Dispatch{
	OperationTimeout: 3 * time.Second,
	NotifyTimeout:    2 * time.Second,
	MaxRadiusKm:      0,
	Timezone:         "UTC",
	RetryInterval:    30 * time.Second,
	RetryOlderThan:   time.Minute,
	RetryBatch:       100,
}

var defaultPricing = Pricing{
	BaseFee:          15,
	PerKm:            2,
	EveningBonusRate: 0.2,
	EveningFromHour:  18,
	EveningToHour:    22,
	MotorcycleBonus:  5,
	CarBonus:         10,
}

var defaultNotify = Notify{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5,
	Burst:      10,
	TTL:        10 * time.Minute,
	MaxBuckets: 10000,
}

var defaultLog = Log{
	Level:   "info",
	Backend: "slog",
}

var defaultPprof = PprofConfig{
	Enabled: false,
	Addr:    "127.0.0.1:6060",
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultRedis returns the default redis settings.
func DefaultRedis() Redis {
	return defaultRedis
}

// DefaultKafka returns the default kafka settings.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultPricing returns the default tariff.
func DefaultPricing() Pricing {
	return defaultPricing
}

// DefaultNotify returns the default notification retry settings.
func DefaultNotify() Notify {
	return defaultNotify
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}

// DefaultLog returns the default logging settings.
func DefaultLog() Log {
	return defaultLog
}

// DefaultPprof returns the default pprof settings.
func DefaultPprof() PprofConfig {
	return defaultPprof
}
