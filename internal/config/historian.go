package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Historian holds the settings of the journal consumer.
type Historian struct {
	RedisAddr   string
	RedisDB     int
	EventsQueue string

	BatchSize  int
	FlushDelay time.Duration

	DatabaseURL string

	LogLevel  string
	LogFormat string
}

// LoadHistorian reads the dotenv file at path, if present, then the environment.
func LoadHistorian(path string) (Historian, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Historian{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	h := Historian{
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		EventsQueue: getEnv("LOBBY_EVENTS_QUEUE", "lobby_events"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		DatabaseURL: databaseURL(),
	}
	var err error
	if h.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Historian{}, err
	}
	if h.BatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return Historian{}, err
	}
	if h.FlushDelay, err = getEnvMillis("HISTORIAN_FLUSH_MS", 500*time.Millisecond); err != nil {
		return Historian{}, err
	}

	switch {
	case h.BatchSize < 1:
		return Historian{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", h.BatchSize)
	case h.FlushDelay <= 0:
		return Historian{}, errors.New("HISTORIAN_FLUSH_MS must be positive")
	}
	return h, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the POSTGRES_* and PG_* variables.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   getEnv("PG_HOST", "localhost") + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}
