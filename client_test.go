package apijson

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements the Logger interface for testing
type mockLogger struct {
	mu         sync.Mutex
	debugCalls []logCall
	infoCalls  []logCall
	warnCalls  []logCall
	errorCalls []logCall
}

type logCall struct {
	msg  string
	args []any
}

// arg returns the value logged under key, or nil.
func (c logCall) arg(key string) any {
	for i := 0; i+1 < len(c.args); i += 2 {
		if c.args[i] == key {
			return c.args[i+1]
		}
	}
	return nil
}

func (m *mockLogger) record(calls *[]logCall, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*calls = append(*calls, logCall{msg: msg, args: args})
}

func (m *mockLogger) Debug(msg string, args ...any) { m.record(&m.debugCalls, msg, args) }
func (m *mockLogger) Info(msg string, args ...any)  { m.record(&m.infoCalls, msg, args) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.record(&m.warnCalls, msg, args) }
func (m *mockLogger) Error(msg string, args ...any) { m.record(&m.errorCalls, msg, args) }

func TestAuth_Apply(t *testing.T) {
	tests := []struct {
		name       string
		auth       Auth
		wantHeader http.Header
		wantQuery  url.Values
	}{
		{
			name:       "basic",
			auth:       BasicAuth{Username: "admin", Password: "s3cret"},
			wantHeader: http.Header{"Authorization": {"Basic YWRtaW46czNjcmV0"}},
		},
		{
			name:       "bearer",
			auth:       BearerAuth{Token: "t0k3n"},
			wantHeader: http.Header{"Authorization": {"Bearer t0k3n"}},
		},
		{
			name:       "api key header",
			auth:       APIKeyAuth{Name: "X-API-Key", Key: "k1"},
			wantHeader: http.Header{"X-Api-Key": {"k1"}},
		},
		{
			name:       "api key with prefix",
			auth:       APIKeyAuth{Name: "Authorization", Key: "k2", Prefix: "Token"},
			wantHeader: http.Header{"Authorization": {"Token k2"}},
		},
		{
			name:       "api key in query",
			auth:       APIKeyAuth{Name: "access_token", Key: "k3", InQuery: true},
			wantQuery:  url.Values{"watch": {"true"}, "access_token": {"k3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://api.local/pods?watch=true", nil)
			tt.auth.Apply(req)

			if len(tt.wantHeader) == 0 {
				assert.Empty(t, req.Header)
			} else {
				assert.Equal(t, tt.wantHeader, req.Header)
			}
			if tt.wantQuery != nil {
				assert.Equal(t, tt.wantQuery, req.URL.Query())
			}
		})
	}
}

func TestClient_Invoke_RetriesUntilSuccess(t *testing.T) {
	var (
		calls  atomic.Int32
		mu     sync.Mutex
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))

		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(b)
	}))
	defer server.Close()

	logger := &mockLogger{}
	client := &Client{
		BaseURL:      server.URL,
		Auth:         BearerAuth{Token: "t0k3n"},
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		Logger:       logger,
	}

	in := lease{
		Holder:   "node-a",
		Acquired: NewDateTime(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)),
		Expires:  NewLocalDate(2024, time.February, 1),
	}

	var out lease
	resp, err := client.Invoke(context.Background(), http.MethodPost, "/leases", nil, in, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())

	// every attempt carries the same encoded body
	require.Len(t, bodies, 3)
	assert.Contains(t, bodies[0], `"acquireTime":"2024-01-02T03:04:05.000Z"`)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])

	assert.Equal(t, in.Holder, out.Holder)
	assert.True(t, in.Acquired.Equal(out.Acquired.Time))
	assert.Equal(t, in.Expires, out.Expires)

	require.Len(t, logger.warnCalls, 2)
	for i, call := range logger.warnCalls {
		assert.Equal(t, "Retrying API request", call.msg)
		assert.Equal(t, i+2, call.arg("attempt"))
		assert.Equal(t, "backoff", call.arg("source"))
		assert.Equal(t, "retryable status code: 503", call.arg("reason"))
	}
	assert.Empty(t, logger.errorCalls)
}

func TestClient_Invoke_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"kind":"Status","message":"etcdserver: request timed out","code":500}`))
	}))
	defer server.Close()

	logger := &mockLogger{}
	client := &Client{BaseURL: server.URL, MaxAttempts: 2, RetryBackoff: time.Millisecond, Logger: logger}

	var out lease
	_, err := client.Invoke(context.Background(), http.MethodGet, "/leases/leader", nil, nil, &out)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	var status apiStatus
	require.NoError(t, apiErr.Decode(&status))
	assert.Equal(t, "etcdserver: request timed out", status.Message)

	require.Len(t, logger.warnCalls, 1)
	require.Len(t, logger.errorCalls, 1)
	assert.Equal(t, "API request max retries exceeded", logger.errorCalls[0].msg)
	assert.Equal(t, 2, logger.errorCalls[0].arg("attempts"))
}

func TestClient_Invoke_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, MaxAttempts: 3, RetryBackoff: time.Millisecond}

	_, err := client.Invoke(context.Background(), http.MethodPut, "/leases/leader", nil, lease{Holder: "node-b"}, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Invoke_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`"ok"`))
	}))
	defer server.Close()

	logger := &mockLogger{}
	client := &Client{BaseURL: server.URL, MaxAttempts: 2, RetryBackoff: time.Millisecond, Logger: logger}

	start := time.Now()
	var out string
	_, err := client.Invoke(context.Background(), http.MethodGet, "/healthz", nil, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, "ok", out)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	require.Len(t, logger.warnCalls, 1)
	assert.Equal(t, "Retry-After header", logger.warnCalls[0].arg("source"))
	assert.Equal(t, "1s", logger.warnCalls[0].arg("delay"))
}

func TestClient_Invoke_ContextDoneDuringRetryWait(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, MaxAttempts: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	var out lease
	_, err := client.Invoke(ctx, http.MethodGet, "/leases/leader", nil, nil, &out)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_Invoke_ContextCanceledBeforeSend(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	logger := &mockLogger{}
	client := &Client{BaseURL: server.URL, MaxAttempts: 3, RetryBackoff: time.Millisecond, Logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Invoke(ctx, http.MethodGet, "/leases", nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, logger.warnCalls)
}

func TestClient_Invoke_TransportErrorExhausted(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	logger := &mockLogger{}
	client := &Client{BaseURL: baseURL, MaxAttempts: 2, RetryBackoff: time.Millisecond, Logger: logger}

	_, err := client.Invoke(context.Background(), http.MethodGet, "/leases", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Len(t, logger.warnCalls, 1)
	assert.Len(t, logger.errorCalls, 1)
}

func TestClient_Defaults(t *testing.T) {
	client := &Client{}
	assert.Equal(t, 1, client.maxAttempts())
	assert.Equal(t, 100*time.Millisecond, client.backoff())
	assert.Same(t, Default(), client.codec())

	codec := New()
	client = &Client{MaxAttempts: 5, RetryBackoff: 500 * time.Millisecond, Codec: codec}
	assert.Equal(t, 5, client.maxAttempts())
	assert.Equal(t, 500*time.Millisecond, client.backoff())
	assert.Same(t, codec, client.codec())
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "absent", header: "", want: 0},
		{name: "seconds", header: "3", want: 3 * time.Second},
		{name: "negative seconds", header: "-1", want: 0},
		{name: "http date", header: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past http date", header: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "garbage", header: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, retryAfter(h, now))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 50 * time.Millisecond
	assert.Equal(t, 50*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, 4))
	assert.Equal(t, 50*time.Millisecond, backoffDelay(base, 0))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		assert.True(t, isRetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusConflict} {
		assert.False(t, isRetryableStatus(code), "status %d", code)
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

type errorCloser struct{}

func (errorCloser) Close() error { return errors.New("connection reset") }

func TestClient_CloseBody(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{Logger: logger}

	client.closeBody(io.NopCloser(strings.NewReader("ok")))
	assert.Empty(t, logger.debugCalls)

	client.closeBody(errorCloser{})
	require.Len(t, logger.debugCalls, 1)
	assert.Equal(t, "connection reset", logger.debugCalls[0].arg("error"))

	// a nil logger is allowed
	(&Client{}).closeBody(errorCloser{})
}
