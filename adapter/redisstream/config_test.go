package redisstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, "127.0.0.1:6379", c.Addr)
	assert.Equal(t, "xcqrs-events", c.Stream)
	require.NoError(t, c.Validate())
}

func TestConfig_Validate(t *testing.T) {
	c := Defaults()
	c.Addr = ""
	require.Error(t, c.Validate())

	c = Defaults()
	c.Stream = ""
	require.Error(t, c.Validate())

	c = Defaults()
	c.MaxLenApprox = -1
	require.Error(t, c.Validate())
}

func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(map[string]any{
		"addr":            "redis-1:6380",
		"username":        "svc",
		"password":        "secret",
		"db":              int64(2),
		"tls":             true,
		"tls_server_name": "redis-1",
		"stream":          "billing-events",
		"max_len_approx":  float64(10000),
	})

	assert.Equal(t, "redis-1:6380", c.Addr)
	assert.Equal(t, "svc", c.Username)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, 2, c.DB)
	assert.True(t, c.TLS)
	assert.Equal(t, "redis-1", c.TLSServerName)
	assert.Equal(t, "billing-events", c.Stream)
	assert.Equal(t, int64(10000), c.MaxLenApprox)
	require.NoError(t, c.Validate())
}

func TestConfigFromMap_Defaults(t *testing.T) {
	c := ConfigFromMap(map[string]any{})
	assert.Equal(t, Defaults(), c)

	// Wrong-typed values fall back to defaults.
	c = ConfigFromMap(map[string]any{
		"addr": 42,
		"db":   "two",
		"tls":  "yes",
	})
	assert.Equal(t, Defaults().Addr, c.Addr)
	assert.Equal(t, 0, c.DB)
	assert.False(t, c.TLS)
}
