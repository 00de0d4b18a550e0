package redisstream

import (
	"fmt"
)

// Config for the Redis Streams event publisher.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Stream
	Stream       string
	MaxLenApprox int64
}

// Defaults returns a Config with safe defaults.
func Defaults() Config {
	return Config{
		Addr:   "127.0.0.1:6379",
		Stream: "xcqrs-events",
	}
}

// Validate checks Config for readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	return nil
}

// ConfigFromMap safely converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	getString := func(k, d string) string {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
		return d
	}
	getInt := func(k string, d int) int {
		switch v := m[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
		return d
	}
	getInt64 := func(k string, d int64) int64 {
		switch v := m[k].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
		return d
	}
	getBool := func(k string, d bool) bool {
		if v, ok := m[k].(bool); ok {
			return v
		}
		return d
	}

	c.Addr = getString("addr", c.Addr)
	c.Username = getString("username", "")
	c.Password = getString("password", "")
	c.DB = getInt("db", 0)
	c.TLS = getBool("tls", false)
	c.TLSServerName = getString("tls_server_name", "")
	c.Stream = getString("stream", c.Stream)
	c.MaxLenApprox = getInt64("max_len_approx", 0)

	return c
}
