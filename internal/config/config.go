package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Field FieldConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	RedisURL           string
	NatsURL            string
}

type FieldConfig struct {
	// Session ceiling. Advisory: the capacity check is check-then-act, two
	// concurrent joins can transiently exceed it.
	MaxSessions int

	// Fraction of MaxSessions at which capacity warnings start firing.
	WarningThreshold float64

	// Server ping period; a pong refreshes the session's last-seen stamp.
	HeartbeatInterval time.Duration

	// How often the stale sweeper scans, and how old a last-seen stamp
	// must be before the session is force-removed.
	SweepInterval  time.Duration
	StaleThreshold time.Duration

	// Minimum gap between position broadcasts per session.
	PositionInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/field.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Field: FieldConfig{
			MaxSessions:       getEnvAsInt("FIELD_MAX_SESSIONS", 100),
			WarningThreshold:  getEnvAsFloat("FIELD_WARNING_THRESHOLD", 0.9),
			HeartbeatInterval: getEnvAsDuration("FIELD_HEARTBEAT_INTERVAL", 30*time.Second),
			SweepInterval:     getEnvAsDuration("FIELD_SWEEP_INTERVAL", 60*time.Second),
			StaleThreshold:    getEnvAsDuration("FIELD_STALE_THRESHOLD", 120*time.Second),
			PositionInterval:  getEnvAsDuration("FIELD_POSITION_INTERVAL", 100*time.Millisecond),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
