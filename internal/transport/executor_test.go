package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisafrica/hostlink/internal/config"
)

func testConfig(endpoint string) config.Config {
	return config.Config{
		Endpoint:    endpoint,
		AgentID:     "SAMAGT",
		Password:    "S@MAgt01",
		Timeout:     2 * time.Second,
		Retries:     3,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		MaxInFlight: 4,
		// High enough that retry tests never trip it.
		BreakerTrips: 100,
		BreakerReset: time.Second,
	}
}

func TestExecute_DeliveredBodyReturnedVerbatim(t *testing.T) {
	const reply = `<Reply><ErrorReply><Error>1052 SCN System.Option not found</Error></ErrorReply></Reply>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
		w.Write([]byte(reply))
	}))
	defer srv.Close()

	exec, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	res, err := exec.Execute(context.Background(), "<Request/>", Options{Operation: "option_info"})
	require.NoError(t, err)
	assert.Equal(t, reply, res.Body)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<Reply><PingReply/></Reply>"))
	}))
	defer srv.Close()

	exec, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	res, err := exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exec, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 3, ue.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, ue.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	exec, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.Status)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestExecute_ContextCancelStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 5
	cfg.BackoffBase = 200 * time.Millisecond
	cfg.BackoffCap = time.Second
	exec, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = exec.Execute(ctx, "<Request/>", Options{Operation: "ping"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.LessOrEqual(t, calls.Load(), int32(2), "cancellation must not burn remaining attempts")
}

func TestExecute_PerCallOptionsOverrideDefaults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	// A single attempt regardless of the configured retry budget.
	_, err = exec.Execute(context.Background(), "<Request/>", Options{Operation: "add_service", Retries: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_CancelledCallerReleasesGateSlot(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-release
		}
		w.Write([]byte("<Reply><PingReply/></Reply>"))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxInFlight = 1
	exec, err := New(cfg)
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond,
		"first caller must be in flight and holding the slot")

	// Second caller queues on the full gate, then gives up.
	ctx, cancel := context.WithCancel(context.Background())
	secondDone := make(chan error, 1)
	go func() {
		_, err := exec.Execute(ctx, "<Request/>", Options{Operation: "ping"})
		secondDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err = <-secondDone
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 0, ue.Attempts, "a caller cancelled in the queue must not reach the upstream")

	// The slot frees when the first caller completes; a third caller
	// acquires it normally.
	close(release)
	require.NoError(t, <-firstDone)

	res, err := exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(2), calls.Load(), "only the first and third callers may reach the upstream")
}

func TestExecute_InsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<Reply><PingReply/></Reply>"))
	}))
	defer srv.Close()

	// The self-signed certificate fails verification by default.
	cfg := testConfig(srv.URL)
	cfg.Retries = 1
	exec, err := New(cfg)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.Error(t, err)

	cfg.InsecureSkipVerify = true
	exec, err = New(cfg)
	require.NoError(t, err)
	res, err := exec.Execute(context.Background(), "<Request/>", Options{Operation: "ping"})
	require.NoError(t, err)
	assert.Contains(t, res.Body, "<PingReply/>")
}

func TestNew_RejectsBadProxyURL(t *testing.T) {
	cfg := testConfig("http://upstream.example/hostconnect")
	cfg.ProxyURL = "://not-a-url"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	e := &Executor{backoffBase: 100 * time.Millisecond, backoffCap: 350 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, e.backoff(1))
	assert.Equal(t, 200*time.Millisecond, e.backoff(2))
	assert.Equal(t, 350*time.Millisecond, e.backoff(3))
	assert.Equal(t, 350*time.Millisecond, e.backoff(10))
}
