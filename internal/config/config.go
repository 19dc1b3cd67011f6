package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/angelurano/tr3s/internal/store"
)

const (
	SchedulerTicker = "ticker"
	SchedulerAsynq  = "asynq"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	CORSOrigin  string
	// Redis backs the change feed and the asynq scheduler. Empty keeps both in-process.
	RedisURL  string
	Scheduler string

	PresenceStaleness time.Duration
	RejectCooldown    time.Duration
	SweepInterval     time.Duration
	InactiveThreshold time.Duration
	MaxOwnedSpaces    int
	MessageWindow     time.Duration
	MessageLimit      int

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8787"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		JWTSecret:   getenv("TR3S_JWT_SECRET", "tr3s-dev-secret"),
		CORSOrigin:  getenv("TR3S_CORS_ORIGIN", "*"),
		RedisURL:    getenv("REDIS_URL", ""),
		Scheduler:   strings.ToLower(getenv("TR3S_SCHEDULER", SchedulerTicker)),

		PresenceStaleness: getenvSeconds("TR3S_PRESENCE_STALENESS_SECONDS", 10),
		RejectCooldown:    getenvSeconds("TR3S_REJECT_COOLDOWN_SECONDS", 300),
		SweepInterval:     getenvSeconds("TR3S_SWEEP_INTERVAL_SECONDS", 300),
		InactiveThreshold: getenvSeconds("TR3S_INACTIVE_THRESHOLD_SECONDS", 300),
		MaxOwnedSpaces:    getenvInt("TR3S_MAX_OWNED_SPACES", 3),
		MessageWindow:     getenvSeconds("TR3S_MESSAGE_WINDOW_SECONDS", 300),
		MessageLimit:      getenvInt("TR3S_MESSAGE_LIMIT", 50),

		DBMaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: getenvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", 1800),
		DBConnMaxIdleTime: getenvSeconds("DB_CONN_MAX_IDLE_SECONDS", 300),
	}
}

// Defaults returns the configuration Load would produce with an empty environment.
func Defaults() Config {
	return Config{
		Addr:              ":8787",
		JWTSecret:         "tr3s-dev-secret",
		CORSOrigin:        "*",
		Scheduler:         SchedulerTicker,
		PresenceStaleness: 10 * time.Second,
		RejectCooldown:    5 * time.Minute,
		SweepInterval:     5 * time.Minute,
		InactiveThreshold: 5 * time.Minute,
		MaxOwnedSpaces:    3,
		MessageWindow:     5 * time.Minute,
		MessageLimit:      50,
		DBMaxOpenConns:    20,
		DBMaxIdleConns:    10,
		DBConnMaxLifetime: 30 * time.Minute,
		DBConnMaxIdleTime: 5 * time.Minute,
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getenvInt(key, fallback)) * time.Second
}

// DBPool hands the pool settings to store.Open.
func (c Config) DBPool() store.Pool {
	return store.Pool{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}
