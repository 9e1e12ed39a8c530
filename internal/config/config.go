// Package config supplies the externally provided settings of the
// integration layer: upstream endpoint, agent credentials, transport
// limits and cache TTLs. Nothing in here is hardcoded at call sites.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultTimeout        = 15 * time.Second
	DefaultDetailTimeout  = 10 * time.Second
	DefaultBookingTimeout = 30 * time.Second
	DefaultRetries        = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffCap     = 5 * time.Second
	DefaultSearchTTL      = 5 * time.Minute
	DefaultStaticTTL      = 30 * time.Minute
	DefaultMaxInFlight    = 8
	DefaultBreakerTrips   = 5
	DefaultBreakerReset   = 30 * time.Second
)

// Config is the full configuration surface of the integration layer.
type Config struct {
	// Upstream endpoint and identity.
	Endpoint string
	AgentID  string
	Password string

	// Per-operation transport timeouts. Timeout is the general default;
	// detail lookups run shorter and booking creation longer.
	Timeout        time.Duration
	DetailTimeout  time.Duration
	BookingTimeout time.Duration

	// Retry policy for transport-level failures.
	Retries     int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Optional outbound proxy (HTTP CONNECT). Empty disables it.
	ProxyURL string

	// InsecureSkipVerify disables upstream TLS certificate checks, for
	// proxied or staging endpoints with unverifiable certificates.
	InsecureSkipVerify bool

	// Optional Redis-backed result cache shared across processes.
	// Empty addr keeps the per-process in-memory cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Result cache TTLs: short for searches, longer for destination and
	// country discovery.
	SearchTTL time.Duration
	StaticTTL time.Duration

	// Bounded-concurrency gate in front of the transport executor.
	MaxInFlight int

	// Circuit breaker: consecutive transport failures before fast-fail,
	// and how long the breaker stays open.
	BreakerTrips int
	BreakerReset time.Duration
}

// FromEnv builds a Config from HOSTLINK_* environment variables.
func FromEnv() Config {
	return Config{
		Endpoint:           ParseString("HOSTLINK_ENDPOINT", ""),
		AgentID:            ParseString("HOSTLINK_AGENT_ID", ""),
		Password:           ParseString("HOSTLINK_PASSWORD", ""),
		Timeout:            ParseDuration("HOSTLINK_TIMEOUT", DefaultTimeout),
		DetailTimeout:      ParseDuration("HOSTLINK_DETAIL_TIMEOUT", DefaultDetailTimeout),
		BookingTimeout:     ParseDuration("HOSTLINK_BOOKING_TIMEOUT", DefaultBookingTimeout),
		Retries:            ParseInt("HOSTLINK_RETRIES", DefaultRetries),
		BackoffBase:        ParseDuration("HOSTLINK_BACKOFF_BASE", DefaultBackoffBase),
		BackoffCap:         ParseDuration("HOSTLINK_BACKOFF_CAP", DefaultBackoffCap),
		ProxyURL:           ParseString("HOSTLINK_PROXY_URL", ""),
		InsecureSkipVerify: ParseBool("HOSTLINK_INSECURE_SKIP_VERIFY", false),
		RedisAddr:          ParseString("HOSTLINK_REDIS_ADDR", ""),
		RedisPassword:      ParseString("HOSTLINK_REDIS_PASSWORD", ""),
		RedisDB:            ParseInt("HOSTLINK_REDIS_DB", 0),
		SearchTTL:          ParseDuration("HOSTLINK_SEARCH_TTL", DefaultSearchTTL),
		StaticTTL:          ParseDuration("HOSTLINK_STATIC_TTL", DefaultStaticTTL),
		MaxInFlight:        ParseInt("HOSTLINK_MAX_IN_FLIGHT", DefaultMaxInFlight),
		BreakerTrips:       ParseInt("HOSTLINK_BREAKER_TRIPS", DefaultBreakerTrips),
		BreakerReset:       ParseDuration("HOSTLINK_BREAKER_RESET", DefaultBreakerReset),
	}
}

// Validate reports configuration errors that make the layer unusable.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	} else if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("endpoint: %w", err))
	}
	if c.AgentID == "" || c.Password == "" {
		errs = append(errs, errors.New("agent credentials are required"))
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("proxy url: %w", err))
		}
	}
	if c.Retries < 1 {
		errs = append(errs, errors.New("retries must be at least 1"))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, errors.New("max in-flight must be at least 1"))
	}
	return errors.Join(errs...)
}
