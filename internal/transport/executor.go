// Package transport executes HostConnect request documents against the
// upstream endpoint with per-attempt timeouts, retry with capped
// exponential backoff, an optional outbound proxy and a
// bounded-concurrency gate. It knows nothing about document contents
// beyond telling a transport failure from a delivered reply.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/thisisafrica/hostlink/internal/config"
	"github.com/thisisafrica/hostlink/internal/log"
	"github.com/thisisafrica/hostlink/internal/metrics"
	"github.com/thisisafrica/hostlink/internal/resilience"
)

// ErrUpstreamUnavailable is the sentinel for transport-level failure
// after all retries are exhausted.
var ErrUpstreamUnavailable = errors.New("transport: upstream unavailable")

// UnavailableError wraps ErrUpstreamUnavailable with the last underlying
// error and the number of attempts made.
type UnavailableError struct {
	Operation string
	Attempts  int
	Status    int // last HTTP status, 0 when the request never completed
	Err       error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("transport: %s: %v after %d attempts", e.Operation, ErrUpstreamUnavailable, e.Attempts)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// RawResponse is a delivered reply body plus how many attempts it took.
type RawResponse struct {
	Body     string
	Attempts int
}

// Options tune one Execute call. Zero values fall back to the
// executor's configured defaults.
type Options struct {
	Operation string        // metrics/log label, e.g. "option_info"
	Timeout   time.Duration // per attempt
	Retries   int           // total attempts, not additional retries
}

// Executor sends request documents to the upstream endpoint.
type Executor struct {
	endpoint string
	client   *http.Client
	gate     *semaphore.Weighted
	breaker  *resilience.CircuitBreaker

	timeout     time.Duration
	retries     int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// New builds an Executor from configuration. The proxy URL, when set,
// routes all upstream calls through an HTTP CONNECT proxy; proxy
// failures are transport failures and participate in retry.
func New(cfg config.Config) (*Executor, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("transport: proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}
	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Executor{
		endpoint:    cfg.Endpoint,
		client:      &http.Client{Transport: tr},
		gate:        semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		breaker:     resilience.NewCircuitBreaker(cfg.BreakerTrips, cfg.BreakerReset),
		timeout:     cfg.Timeout,
		retries:     cfg.Retries,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}, nil
}

// Execute posts one request document. It retries connection failures,
// timeouts and 5xx responses; any delivered 2xx body is returned as-is,
// including upstream error documents, which are the decoder's business.
// Cancelling ctx aborts the in-flight attempt and releases the gate slot.
func (e *Executor) Execute(ctx context.Context, doc string, opts Options) (RawResponse, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = e.retries
	}
	op := opts.Operation
	if op == "" {
		op = "unknown"
	}
	logger := log.WithComponentFromContext(ctx, "transport")

	// Bounded-concurrency gate: queue excess callers instead of failing
	// them; a cancelled caller leaves the queue immediately.
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return RawResponse{}, &UnavailableError{Operation: op, Attempts: 0, Err: err}
	}
	defer e.gate.Release(1)

	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	var lastStatus int
	attemptsMade := 0
	for attempt := 1; attempt <= retries; attempt++ {
		attemptsMade = attempt
		if !e.breaker.Allow() {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "transport_error").Inc()
			return RawResponse{}, &UnavailableError{
				Operation: op,
				Attempts:  attempt - 1,
				Err:       resilience.ErrCircuitOpen,
			}
		}

		body, status, err := e.post(ctx, doc, timeout)
		if err == nil && status < 500 && status >= 200 && status < 300 {
			e.breaker.RecordSuccess()
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "ok").Inc()
			return RawResponse{Body: body, Attempts: attempt}, nil
		}

		lastStatus = status
		switch {
		case err != nil:
			lastErr = err
		case status >= 500:
			lastErr = fmt.Errorf("upstream returned HTTP %d", status)
		default:
			// Delivered non-2xx below 500: a broken request, not a flaky
			// upstream. Retrying cannot help.
			e.breaker.RecordFailure()
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "transport_error").Inc()
			return RawResponse{}, &UnavailableError{
				Operation: op,
				Attempts:  attempt,
				Status:    status,
				Err:       fmt.Errorf("upstream returned HTTP %d", status),
			}
		}
		e.breaker.RecordFailure()

		// Caller gave up: do not burn the remaining attempts.
		if ctx.Err() != nil {
			break
		}

		if attempt < retries {
			wait := e.backoff(attempt)
			logger.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Int("max_attempts", retries).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("upstream attempt failed, retrying")
			metrics.UpstreamRetriesTotal.WithLabelValues(op).Inc()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				metrics.UpstreamRequestsTotal.WithLabelValues(op, "transport_error").Inc()
				return RawResponse{}, &UnavailableError{Operation: op, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(op, "transport_error").Inc()
	if err := ctx.Err(); err != nil && lastErr == nil {
		lastErr = err
	}
	return RawResponse{}, &UnavailableError{
		Operation: op,
		Attempts:  attemptsMade,
		Status:    lastStatus,
		Err:       lastErr,
	}
}

// post performs a single attempt under its own deadline.
func (e *Executor) post(ctx context.Context, doc string, timeout time.Duration) (string, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, e.endpoint, strings.NewReader(doc))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")

	res, err := e.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", res.StatusCode, err
	}
	return string(body), res.StatusCode, nil
}

// backoff doubles from the base per attempt and is capped.
func (e *Executor) backoff(attempt int) time.Duration {
	wait := e.backoffBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= e.backoffCap {
			return e.backoffCap
		}
	}
	if wait > e.backoffCap {
		return e.backoffCap
	}
	return wait
}
