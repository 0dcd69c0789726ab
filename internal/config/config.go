package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Booking  BookingConfig
	Jobs     JobsConfig
	Line     LineConfig
	Storage  StorageConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Host string
	Port int
	// RequestsPerMinute is the per-IP budget for every route.
	RequestsPerMinute int
	// HoldsPerMinute caps POST /bookings per IP across instances.
	HoldsPerMinute int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

// BookingConfig holds the business rules of the slot engine.
type BookingConfig struct {
	Location             *time.Location
	SlotMinutes          int
	HoldTTL              time.Duration
	CutOff               time.Duration
	MaxAdvanceDays       int
	DepositMinor         int64
	AvailabilityCacheTTL time.Duration
}

type JobsConfig struct {
	SweepSpec       string
	CleanupSpec     string
	PregenerateSpec string
	RetentionDays   int
	PregenerateDays int
}

type LineConfig struct {
	AccessToken   string
	ChannelSecret string
	BaseURL       string
	// BookingURL is the LIFF page linked from chat replies.
	BookingURL string
}

type StorageConfig struct {
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

type NotifyConfig struct {
	Concurrency   int
	RatePerSecond float64
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	requestsPerMinute, err := intEnv("RATE_LIMIT_PER_MINUTE", 300)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	holdsPerMinute, err := intEnv("HOLD_RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	serverCfg := ServerConfig{
		Host:              stringEnv("SERVER_HOST", "localhost"),
		Port:              serverPort,
		RequestsPerMinute: requestsPerMinute,
		HoldsPerMinute:    holdsPerMinute,
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresMaxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     stringEnv("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  stringEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(postgresMaxConns),
		Migrate:  stringEnv("POSTGRES_MIGRATE", "true") == "true",
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     stringEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	bookingCfg, err := loadBooking()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	jobsCfg, err := loadJobs()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	notifyConcurrency, err := intEnv("NOTIFY_CONCURRENCY", 5)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	notifyRate, err := strconv.ParseFloat(stringEnv("NOTIFY_RATE_PER_SECOND", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid NOTIFY_RATE_PER_SECOND: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Booking:  bookingCfg,
		Jobs:     jobsCfg,
		Line: LineConfig{
			AccessToken:   os.Getenv("LINE_MESSAGING_ACCESS_TOKEN"),
			ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
			BaseURL:       stringEnv("LINE_API_BASE_URL", "https://api.line.me"),
			BookingURL:    os.Getenv("LIFF_URL"),
		},
		Storage: StorageConfig{
			Bucket:          stringEnv("SLIP_BUCKET", "slips"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			PublicBaseURL:   stringEnv("RECEIPT_BASE_URL", "https://storage.googleapis.com/slips"),
		},
		Notify: NotifyConfig{
			Concurrency:   notifyConcurrency,
			RatePerSecond: notifyRate,
		},
	}, nil
}

// DSN builds the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

func loadBooking() (BookingConfig, error) {
	tz := stringEnv("TZ", "Asia/Bangkok")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return BookingConfig{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	slotMinutes, err := intEnv("BOOKING_TIMEBLOCK_MINUTES", 60)
	if err != nil {
		return BookingConfig{}, err
	}

	holdTTL, err := intEnv("HOLD_TTL_MINUTES", 15)
	if err != nil {
		return BookingConfig{}, err
	}

	cutOff, err := intEnv("CUT_OFF_MINUTES_TODAY", 15)
	if err != nil {
		return BookingConfig{}, err
	}

	maxAdvance, err := intEnv("MAX_ADVANCE_DAYS", 30)
	if err != nil {
		return BookingConfig{}, err
	}

	deposit, err := intEnv("DEPOSIT_MINOR", 2000)
	if err != nil {
		return BookingConfig{}, err
	}

	cacheTTL, err := intEnv("AVAILABILITY_CACHE_SECONDS", 10)
	if err != nil {
		return BookingConfig{}, err
	}

	return BookingConfig{
		Location:             loc,
		SlotMinutes:          slotMinutes,
		HoldTTL:              time.Duration(holdTTL) * time.Minute,
		CutOff:               time.Duration(cutOff) * time.Minute,
		MaxAdvanceDays:       maxAdvance,
		DepositMinor:         int64(deposit),
		AvailabilityCacheTTL: time.Duration(cacheTTL) * time.Second,
	}, nil
}

func loadJobs() (JobsConfig, error) {
	retention, err := intEnv("RETENTION_DAYS", 30)
	if err != nil {
		return JobsConfig{}, err
	}

	pregenerate, err := intEnv("PREGENERATE_DAYS", 7)
	if err != nil {
		return JobsConfig{}, err
	}

	return JobsConfig{
		SweepSpec:       stringEnv("SWEEP_SPEC", "@every 1m"),
		CleanupSpec:     stringEnv("CLEANUP_SPEC", "0 2 * * *"),
		PregenerateSpec: stringEnv("PREGENERATE_SPEC", "0 1 * * *"),
		RetentionDays:   retention,
		PregenerateDays: pregenerate,
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}
