package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRelay(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want bool
	}{
		{"plain request", Spec{Body: []byte(`{"model":"gpt-4o"}`)}, false},
		{"file marker in body", Spec{Body: []byte(`{"url":"file:///tmp/a.png"}`)}, true},
		{"relay forced", Spec{Strategy: StrategyRelay}, true},
		{"tls relax, auto strategy", Spec{TLSRelax: true}, true},
		{"http1 only, auto strategy", Spec{HTTP1Only: true}, true},
		{"tls relax but native", Spec{Strategy: StrategyNative, TLSRelax: true}, false},
		{"http1 only but native", Spec{Strategy: StrategyNative, HTTP1Only: true}, false},
		{"file marker wins over native", Spec{Strategy: StrategyNative, Body: []byte("file://x")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRelay(tt.spec))
		})
	}
}

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	handle, err := New().Send(context.Background(), Spec{
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: header,
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	defer handle.Close()

	body, err := io.ReadAll(handle.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestSendTimeoutIsNotCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	_, err := New().Send(context.Background(), Spec{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)

	var te *provider.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 50*time.Millisecond, te.After)

	var ce *provider.CancellationError
	assert.False(t, errors.As(err, &ce), "timeout must not read as cancellation")
}

func TestSendExternalCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := New().Send(ctx, Spec{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 10 * time.Second,
	})
	require.Error(t, err)

	var ce *provider.CancellationError
	require.ErrorAs(t, err, &ce)

	var te *provider.TimeoutError
	assert.False(t, errors.As(err, &te), "cancellation must not read as timeout")
}

func TestSendPreCancelledFailsWithoutCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Send(ctx, Spec{Method: http.MethodGet, URL: srv.URL})
	var ce *provider.CancellationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, called, "no request may be issued after cancellation")
}

func TestSendHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2.5")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := New().Send(context.Background(), Spec{Method: http.MethodPost, URL: srv.URL})
	var se *provider.HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "rate limited")
	require.NotNil(t, se.RetryAfterSeconds)
	assert.InDelta(t, 2.5, *se.RetryAfterSeconds, 0.01)
}

func TestSendConnectivityError(t *testing.T) {
	_, err := New().Send(context.Background(), Spec{
		Method: http.MethodGet,
		URL:    "http://127.0.0.1:1",
	})
	var ce *provider.ConnectivityError
	require.ErrorAs(t, err, &ce)
}

func TestSendRelayEnvelope(t *testing.T) {
	var env map[string]any
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &env))
		w.Write([]byte(`{"relayed":true}`))
	}))
	defer relay.Close()

	header := make(http.Header)
	header.Set("x-api-key", "secret")
	handle, err := New(WithRelayURL(relay.URL)).Send(context.Background(), Spec{
		Method:    http.MethodPost,
		URL:       "https://api.example.com/v1/messages",
		Header:    header,
		Body:      []byte(`{"image":"file:///tmp/cat.png"}`),
		Timeout:   30 * time.Second,
		TLSRelax:  true,
		HTTP1Only: true,
		Proxy:     "socks5://127.0.0.1:1080",
	})
	require.NoError(t, err)
	defer handle.Close()

	assert.Equal(t, "https://api.example.com/v1/messages", env["targetUrl"])
	assert.Equal(t, "POST", env["method"])
	assert.Equal(t, `{"image":"file:///tmp/cat.png"}`, env["body"])
	assert.EqualValues(t, 30000, env["timeout"])
	assert.Equal(t, true, env["tlsRelax"])
	assert.Equal(t, true, env["http1Only"])
	assert.Equal(t, "socks5://127.0.0.1:1080", env["proxySettings"])
	headers, ok := env["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "secret", headers["X-Api-Key"])

	body, err := io.ReadAll(handle.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"relayed":true}`, string(body))
}

func TestSendDirectStaysOffRelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	relayHit := false
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayHit = true
	}))
	defer relay.Close()

	handle, err := New(WithRelayURL(relay.URL)).Send(context.Background(), Spec{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   []byte(`{"model":"gpt-4o"}`),
	})
	require.NoError(t, err)
	handle.Close()
	assert.False(t, relayHit)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Nil(t, parseRetryAfter(""))

	got := parseRetryAfter("12")
	require.NotNil(t, got)
	assert.Equal(t, 12.0, *got)

	date := time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123)
	got = parseRetryAfter(date)
	require.NotNil(t, got)
	assert.InDelta(t, 30.0, *got, 2.0)
}

func TestParseRateLimit(t *testing.T) {
	assert.Nil(t, ParseRateLimit(http.Header{}))

	h := http.Header{}
	h.Set("x-ratelimit-remaining-requests", "99")
	h.Set("x-ratelimit-limit-requests", "100")
	info := ParseRateLimit(h)
	require.NotNil(t, info)
	require.NotNil(t, info.RequestsRemaining)
	assert.Equal(t, 99, *info.RequestsRemaining)
	require.NotNil(t, info.RequestsLimit)
	assert.Equal(t, 100, *info.RequestsLimit)
}
