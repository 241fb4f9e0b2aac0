package apijson

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Auth defines the interface for applying authentication to HTTP requests
type Auth interface {
	Apply(req *http.Request)
}

// BasicAuth implements HTTP Basic Authentication
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

// BearerAuth implements HTTP Bearer Token Authentication
type BearerAuth struct {
	Token string
}

func (b BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+b.Token)
}

// APIKeyAuth sends a key in a header, or in a query parameter when InQuery is set.
// Prefix is prepended to header values, e.g. "Bearer".
type APIKeyAuth struct {
	Name    string
	Key     string
	Prefix  string
	InQuery bool
}

func (a APIKeyAuth) Apply(req *http.Request) {
	if a.InQuery {
		q := req.URL.Query()
		q.Set(a.Name, a.Key)
		req.URL.RawQuery = q.Encode()
		return
	}
	value := a.Key
	if a.Prefix != "" {
		value = a.Prefix + " " + a.Key
	}
	req.Header.Set(a.Name, value)
}

// Client sends API requests, encoding bodies with Codec
type Client struct {
	http.Client
	BaseURL      string
	Auth         Auth
	Codec        Serializer    // Body codec (nil = Default())
	RetryBackoff time.Duration // Initial backoff duration for retries
	MaxAttempts  int           // Maximum number of retry attempts (0 = no retries)
	Logger       Logger        // Optional logger (nil = no logging)
}

// Do applies auth and sends req. Responses with a 5xx or 429 status and
// transport errors are retried up to MaxAttempts, waiting for Retry-After
// when the server sends one and doubling RetryBackoff otherwise. The wait
// ends early when the request context is done.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.Auth != nil {
		c.Auth.Apply(req)
	}

	attempts := c.maxAttempts()
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
		}

		resp, err := c.Client.Do(req)
		if err == nil && !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && req.Context().Err() != nil {
			return nil, err
		}

		if attempt >= attempts {
			c.logError("API request max retries exceeded",
				"method", req.Method,
				"url", req.URL.String(),
				"attempts", attempts,
				"last_error", retryReason(resp, err),
			)
			if err != nil {
				return nil, fmt.Errorf("max retries exceeded: %w", err)
			}
			// the caller turns the last retryable response into an APIError
			return resp, nil
		}

		delay, source := c.retryDelay(resp, attempt)
		c.logWarn("Retrying API request",
			"method", req.Method,
			"url", req.URL.String(),
			"attempt", attempt+1,
			"max_attempts", attempts,
			"reason", retryReason(resp, err),
			"delay", delay.String(),
			"source", source,
		)
		if resp != nil {
			c.closeBody(resp.Body)
		}

		if err := sleepContext(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rewindBody restores a consumed request body before a retry
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

func retryReason(resp *http.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return "retryable status code: " + strconv.Itoa(resp.StatusCode)
}

// retryDelay prefers the server's Retry-After over exponential backoff.
func (c *Client) retryDelay(resp *http.Response, attempt int) (time.Duration, string) {
	if resp != nil {
		if d := retryAfter(resp.Header, time.Now()); d > 0 {
			return d, "Retry-After header"
		}
	}
	return backoffDelay(c.backoff(), attempt), "backoff"
}

// maxAttempts returns the maximum number of attempts (at least 1)
func (c *Client) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 1
	}
	return c.MaxAttempts
}

// backoff returns the initial backoff duration with default fallback
func (c *Client) backoff() time.Duration {
	if c.RetryBackoff <= 0 {
		return 100 * time.Millisecond
	}
	return c.RetryBackoff
}

// isRetryableStatus returns true if the status code warrants a retry
func isRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// backoffDelay doubles base for every attempt after the first.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << max(attempt-1, 0)
}

// retryAfter reads a Retry-After header given either as delay-seconds
// ("120") or as an HTTP-date. It returns 0 when the header is absent,
// malformed or already in the past.
func retryAfter(h http.Header, now time.Time) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

// closeBody closes the response body and logs any error if a logger is configured
func (c *Client) closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		c.logDebug("Failed to close response body", "error", err.Error())
	}
}

// logDebug logs a debug message if a logger is configured
func (c *Client) logDebug(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Debug(msg, args...)
	}
}

// logWarn logs a warning message if a logger is configured
func (c *Client) logWarn(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Warn(msg, args...)
	}
}

// logInfo logs an info message if a logger is configured
func (c *Client) logInfo(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Info(msg, args...)
	}
}

// logError logs an error message if a logger is configured
func (c *Client) logError(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Error(msg, args...)
	}
}
