// Package config loads the client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

type Config struct {
	ServerURL      string
	WSURL          string
	ReconnectDelay time.Duration
	MaxDesync      float64

	StoreBackend string
	StorePath    string
	RedisURL     string

	// JournalDSN is empty when no journal is kept.
	JournalDSN string

	// ControlAddr is empty when the control server is disabled.
	ControlAddr string

	LogLevel  string
	LogPretty bool
}

func Load() (Config, error) {
	cfg := Config{
		ServerURL:      getenv("SERVER_URL", "http://localhost:1234"),
		WSURL:          getenv("WS_URL", ""),
		ReconnectDelay: getenvDuration("RECONNECT_DELAY", 5*time.Second),
		MaxDesync:      getenvFloat("MAX_DESYNC", 1.5),
		StoreBackend:   getenv("STORE_BACKEND", BackendMemory),
		StorePath:      getenv("STORE_PATH", "room-client/data"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379"),
		JournalDSN:     getenv("JOURNAL_DSN", ""),
		ControlAddr:    os.Getenv("CONTROL_ADDR"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogPretty:      getenvBool("LOG_PRETTY", false),
	}
	if _, ok := os.LookupEnv("CONTROL_ADDR"); !ok {
		cfg.ControlAddr = ":5180"
	}
	return cfg, cfg.Finalize()
}

// Finalize derives unset values and validates the result. It is called
// again after command-line overrides.
func (c *Config) Finalize() error {
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.WSURL == "" {
		ws, err := StreamURL(c.ServerURL)
		if err != nil {
			return err
		}
		c.WSURL = ws
	}
	switch c.StoreBackend {
	case BackendMemory, BackendPebble, BackendRedis:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("config: RECONNECT_DELAY must be positive")
	}
	if c.MaxDesync <= 0 {
		return errors.New("config: MAX_DESYNC must be positive")
	}
	return nil
}

// StreamURL maps the server address to its event stream endpoint:
// http becomes ws, https becomes wss.
func StreamURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("config: SERVER_URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("config: SERVER_URL: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/events"
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	raw := getenv(k, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// Bare numbers are milliseconds.
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	raw := getenv(k, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvBool(k string, def bool) bool {
	raw := getenv(k, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
