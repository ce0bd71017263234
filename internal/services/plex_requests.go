package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"moviepicker/internal/logging"
	"moviepicker/internal/metrics"
)

const maxRateLimitRetries = 3

type requestConfig struct {
	method string
	// baseURL overrides the server URL, for commands sent straight to a player.
	baseURL string
	path    string
	query   url.Values
	headers map[string]string
	// direct requests bypass the server circuit breaker.
	direct bool
}

// errServerStatus marks 5xx responses so the breaker counts them.
type errServerStatus struct {
	status int
}

func (e *errServerStatus) Error() string {
	return fmt.Sprintf("server returned status %d", e.status)
}

func newPlexBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (p *PlexClient) getHeaders() map[string]string {
	return map[string]string{
		"Accept":                   "application/json",
		"X-Plex-Token":             p.token,
		"X-Plex-Product":           p.product,
		"X-Plex-Version":           p.version,
		"X-Plex-Client-Identifier": p.clientID,
		"X-Plex-Device":            p.device,
		"X-Plex-Device-Name":       p.product,
		"X-Plex-Platform":          "Web",
	}
}

// doRequest executes a Plex API call and decodes a JSON body into result when non-nil.
// Transport failures, 5xx responses and an open breaker are ErrUpstreamUnavailable;
// 404 is ErrNotFound.
func (p *PlexClient) doRequest(ctx context.Context, cfg requestConfig, result any) error {
	base := p.baseURL
	if cfg.baseURL != "" {
		base = cfg.baseURL
	}
	reqURL := base + cfg.path
	if len(cfg.query) > 0 {
		reqURL += "?" + cfg.query.Encode()
	}

	resp, err := p.executeWithRetry(ctx, cfg, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", cfg.method, cfg.path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status %d", cfg.method, cfg.path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s response: %w", cfg.path, err)
		}
	}
	return nil
}

func (p *PlexClient) executeWithRetry(ctx context.Context, cfg requestConfig, reqURL string) (*http.Response, error) {
	backoff := p.retryBackoff
	for attempt := 0; ; attempt++ {
		resp, err := p.execute(ctx, cfg, reqURL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		if attempt >= maxRateLimitRetries {
			return nil, fmt.Errorf("%w: rate limited after %d retries", ErrUpstreamUnavailable, maxRateLimitRetries)
		}

		wait := backoff
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			wait = time.Duration(seconds) * time.Second
		}
		logging.Warn().Dur("wait", wait).Int("attempt", attempt+1).Str("path", cfg.path).Msg("Plex rate limited, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func (p *PlexClient) execute(ctx context.Context, cfg requestConfig, reqURL string) (*http.Response, error) {
	send := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for key, value := range p.getHeaders() {
			req.Header.Set(key, value)
		}
		for key, value := range cfg.headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err := p.httpClient.Do(req)
		if err != nil {
			metrics.PlexRequestDuration.WithLabelValues(cfg.method, "error").Observe(time.Since(start).Seconds())
			return nil, err
		}
		metrics.PlexRequestDuration.WithLabelValues(cfg.method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &errServerStatus{status: resp.StatusCode}
		}
		return resp, nil
	}

	var resp *http.Response
	var err error
	if cfg.direct {
		resp, err = send()
	} else {
		resp, err = p.breaker.Execute(send)
	}
	if err == nil {
		return resp, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open", ErrUpstreamUnavailable)
	}
	return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstreamUnavailable, cfg.method, cfg.path, err)
}
