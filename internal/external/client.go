// Package external routes all outbound HTTP calls (image fetches, HTTP mail
// API delivery) through the BaseClient, which enforces consistent behavior:
// circuit breaking, trace propagation, and error mapping. Every call is
// strictly single-shot. A failed attempt is mapped to a types.AppError and
// reported to the caller; it is never replayed.
package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"mailblast/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BaseClient wraps an *http.Client and a circuit breaker to enforce consistent
// behavior on all outbound HTTP calls. Consumers (the image fetcher, the API
// mail transport) embed or hold a BaseClient to inherit it.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name, and user agent string. The breaker opens after five
// consecutive failures and rejects calls outright while open; it never causes
// a second attempt.
func NewBaseClient(httpClient *http.Client, breakerName string, userAgent string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing or when sharing a breaker across clients.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], userAgent string) *BaseClient {
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request exactly once with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// On success (any status below 500, other than 429), Do returns the response
// as-is and the caller owns the body. Callers decide which statuses count as a
// delivered message; a 4xx from a mail API is still a completed exchange at
// this layer.
//
// On network failure, timeout, 5xx, 429, or open breaker, Do returns a
// types.AppError with a transport error code and no response.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	// Inject trace ID from context if available.
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}

	// Inject User-Agent.
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// Feed 5xx and 429 to the breaker as failures so a persistently
		// broken upstream trips it open.
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		if r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned 429")
		}
		return r, nil
	})

	if err == nil {
		return resp, nil
	}

	// Single attempt only. Close the failed response body (if any) and map
	// the failure for the caller's report.
	if resp != nil {
		resp.Body.Close()
	}

	return nil, c.mapError(resp, err)
}

// mapError translates HTTP-level failures into domain-level AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	// Circuit breaker open.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeTransportRateLimited,
			"circuit breaker is open; upstream calls suspended",
			err,
		)
	}

	// Specific HTTP status codes from the response.
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeTransportRateLimited,
				"upstream rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeTransportRejected,
				fmt.Sprintf("upstream returned %d", resp.StatusCode),
				err,
			)
		}
	}

	// Timeouts surface distinctly so a report can tell a slow upstream from
	// an unreachable one.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewAppError(
			types.ErrCodeTransportTimeout,
			"upstream request timed out",
			err,
		)
	}

	// Generic connection failure (refused, DNS, TLS).
	return types.NewAppError(
		types.ErrCodeTransportConnect,
		"upstream request failed",
		err,
	)
}
