package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultDetailTimeout, cfg.DetailTimeout)
	assert.Equal(t, DefaultBookingTimeout, cfg.BookingTimeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultSearchTTL, cfg.SearchTTL)
	assert.Equal(t, DefaultStaticTTL, cfg.StaticTTL)
	assert.Equal(t, DefaultMaxInFlight, cfg.MaxInFlight)
	assert.Equal(t, DefaultBreakerTrips, cfg.BreakerTrips)
	assert.Empty(t, cfg.ProxyURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HOSTLINK_ENDPOINT", "https://pa-thisis.nx.tourplan.net/hostconnect/api/hostConnectApi")
	t.Setenv("HOSTLINK_AGENT_ID", "SAMAGT")
	t.Setenv("HOSTLINK_PASSWORD", "S@MAgt01")
	t.Setenv("HOSTLINK_TIMEOUT", "20s")
	t.Setenv("HOSTLINK_RETRIES", "5")
	t.Setenv("HOSTLINK_PROXY_URL", "http://proxy.internal:3128")
	t.Setenv("HOSTLINK_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("HOSTLINK_REDIS_ADDR", "cache.internal:6379")
	t.Setenv("HOSTLINK_REDIS_DB", "2")

	cfg := FromEnv()
	assert.Equal(t, "SAMAGT", cfg.AgentID)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, "http://proxy.internal:3128", cfg.ProxyURL)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "cache.internal:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HOSTLINK_RETRIES", "lots")
	t.Setenv("HOSTLINK_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Endpoint:    "https://upstream.example/hostconnect",
		AgentID:     "SAMAGT",
		Password:    "S@MAgt01",
		Retries:     3,
		MaxInFlight: 8,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.Endpoint = ""
	missing.Password = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
	assert.Contains(t, err.Error(), "agent credentials are required")

	badRetries := valid
	badRetries.Retries = 0
	assert.ErrorContains(t, badRetries.Validate(), "retries")

	badGate := valid
	badGate.MaxInFlight = 0
	assert.ErrorContains(t, badGate.Validate(), "in-flight")
}

func TestParseBool(t *testing.T) {
	t.Setenv("HOSTLINK_TEST_BOOL", "yes")
	assert.True(t, ParseBool("HOSTLINK_TEST_BOOL", false))

	t.Setenv("HOSTLINK_TEST_BOOL", "0")
	assert.False(t, ParseBool("HOSTLINK_TEST_BOOL", true))

	t.Setenv("HOSTLINK_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("HOSTLINK_TEST_BOOL", true))

	assert.True(t, ParseBool("HOSTLINK_TEST_BOOL_UNSET", true))
}
