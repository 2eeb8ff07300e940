package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/metrics"
)

// DefaultTimeout bounds every outbound provider call, retries included.
const DefaultTimeout = 8 * time.Second

const maxBodyBytes = 2 << 20

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	Backoff   BackoffConfig
}

// DefaultBackoff retries a failing call once after a short pause.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      1,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError is returned for upstream 5xx answers.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server error: status %d", e.code)
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})
}

// response is a fully read upstream answer.
type response struct {
	status int
	body   []byte
}

// get issues a GET with query params under the configured timeout.
func get(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, rawURL string, params url.Values) (response, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buildRequest := func() (*http.Request, error) {
		u := rawURL
		if len(params) > 0 {
			u = fmt.Sprintf("%s?%s", rawURL, params.Encode())
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}
		return req, nil
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, cfg, cb, buildRequest)
	metrics.UpstreamLatency.WithLabelValues(cb.Name()).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues(cb.Name(), outcome(resp, err)).Inc()
	return resp, err
}

func outcome(resp response, err error) string {
	switch {
	case errors.Is(err, errCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case err != nil:
		return "error"
	case resp.status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}

// doRequestWithResilience executes the request with retries, exponential backoff
// and a circuit breaker. Answers below 500 are returned to the caller untouched;
// 5xx answers and transport failures are retried and count against the breaker.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (response, error) {
	if cfg.Client == nil {
		return response{}, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return response{}, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return response{}, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
				return nil, &statusError{code: resp.StatusCode}
			}

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if readErr != nil {
				return nil, readErr
			}
			return response{status: resp.StatusCode, body: body}, nil
		})

		if err == nil {
			resp, ok := result.(response)
			if !ok {
				return response{}, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return response{}, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return response{}, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return response{}, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// upstreamError turns a transport-level failure into an UpstreamUnavailable error.
func upstreamError(provider string, err error) error {
	status := 0
	var se *statusError
	if errors.As(err, &se) {
		status = se.code
	}
	return apperror.Upstream(provider+" unavailable", status, err)
}
