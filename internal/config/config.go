// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no path is given on the command line.
const DefaultEnvFile = ".env"

// Config holds the server-wide settings. It is loaded once at startup and never
// mutated afterwards.
type Config struct {
	ListenAddr string

	MinNameLength int
	MaxNameLength int
	MaxUsers      int
	MaxRooms      int // 0 means unlimited

	HandshakeTimeout time.Duration
	ReceiveTimeout   time.Duration // 0 means wait forever
	WriteTimeout     time.Duration
	OutboxSize       int

	ConnectRatePerMinute int // 0 disables rate limiting

	LogLevel  string
	LogFormat string

	RedisAddr   string
	RedisDB     int
	EventsQueue string
}

// Default returns the stock lobby settings.
func Default() Config {
	return Config{
		ListenAddr:           ":1000",
		MinNameLength:        3,
		MaxNameLength:        10,
		MaxUsers:             10,
		MaxRooms:             0,
		HandshakeTimeout:     5 * time.Second,
		ReceiveTimeout:       0,
		WriteTimeout:         5 * time.Second,
		OutboxSize:           64,
		ConnectRatePerMinute: 60,
		LogLevel:             "info",
		LogFormat:            "text",
		EventsQueue:          "lobby_events",
	}
}

// Load reads the dotenv file at path (if it exists) into the process environment and
// builds a Config from it, falling back to Default for unset variables.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Default()
	var err error

	cfg.ListenAddr = getEnv("LOBBY_ADDR", cfg.ListenAddr)
	if cfg.MinNameLength, err = getEnvInt("MIN_USER_NAME", cfg.MinNameLength); err != nil {
		return Config{}, err
	}
	if cfg.MaxNameLength, err = getEnvInt("MAX_USER_NAME", cfg.MaxNameLength); err != nil {
		return Config{}, err
	}
	if cfg.MaxUsers, err = getEnvInt("MAX_NUMBER_OF_USERS", cfg.MaxUsers); err != nil {
		return Config{}, err
	}
	if cfg.MaxRooms, err = getEnvInt("MAX_NUMBER_OF_ROOMS", cfg.MaxRooms); err != nil {
		return Config{}, err
	}
	if cfg.HandshakeTimeout, err = getEnvMillis("HANDSHAKE_TIMEOUT_MS", cfg.HandshakeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReceiveTimeout, err = getEnvMillis("RECEIVE_TIMEOUT_MS", cfg.ReceiveTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = getEnvMillis("WRITE_TIMEOUT_MS", cfg.WriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.OutboxSize, err = getEnvInt("OUTBOX_SIZE", cfg.OutboxSize); err != nil {
		return Config{}, err
	}
	if cfg.ConnectRatePerMinute, err = getEnvInt("CONNECT_RATE_PER_MIN", cfg.ConnectRatePerMinute); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return Config{}, err
	}
	cfg.EventsQueue = getEnv("LOBBY_EVENTS_QUEUE", cfg.EventsQueue)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for values the lobby cannot work with.
func (c Config) Validate() error {
	switch {
	case c.MinNameLength < 1:
		return fmt.Errorf("MIN_USER_NAME must be positive, got %d", c.MinNameLength)
	case c.MaxNameLength < c.MinNameLength:
		return fmt.Errorf("MAX_USER_NAME (%d) is below MIN_USER_NAME (%d)", c.MaxNameLength, c.MinNameLength)
	case c.MaxUsers < 1:
		return fmt.Errorf("MAX_NUMBER_OF_USERS must be positive, got %d", c.MaxUsers)
	case c.MaxRooms < 0:
		return fmt.Errorf("MAX_NUMBER_OF_ROOMS must not be negative, got %d", c.MaxRooms)
	case c.OutboxSize < 8:
		return fmt.Errorf("OUTBOX_SIZE must be at least 8, got %d", c.OutboxSize)
	case c.HandshakeTimeout <= 0:
		return errors.New("HANDSHAKE_TIMEOUT_MS must be positive")
	case c.WriteTimeout <= 0:
		return errors.New("WRITE_TIMEOUT_MS must be positive")
	case c.ReceiveTimeout < 0:
		return errors.New("RECEIVE_TIMEOUT_MS must not be negative")
	}
	return nil
}

// ServerConfig is the payload of the serverConfig message sent to every admitted user.
func (c Config) ServerConfig() map[string]interface{} {
	return map[string]interface{}{
		"MIN_USER_NAME":       c.MinNameLength,
		"MAX_USER_NAME":       c.MaxNameLength,
		"MAX_NUMBER_OF_USERS": c.MaxUsers,
		"MAX_NUMBER_OF_ROOMS": c.MaxRooms,
		"TIMEOUT":             c.ReceiveTimeout.Milliseconds(),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvMillis(key string, def time.Duration) (time.Duration, error) {
	ms, err := getEnvInt(key, int(def.Milliseconds()))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
