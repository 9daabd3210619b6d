package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(&config.ScraperConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 2 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     time.Millisecond,
		RequestDelay:   time.Millisecond,
		RatePerSecond:  1000,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClientGet(t *testing.T) {
	t.Run("returns body on success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("missing user agent header, got %q", r.Header.Get("User-Agent"))
			}
			w.Write([]byte("hello"))
		}))
		defer srv.Close()

		data, err := testClient(t).Get(context.Background(), domain.PlatformLeetCode, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("maps 404 to handle not found without retry", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := testClient(t).Get(context.Background(), domain.PlatformCodeChef, srv.URL)
		if !errors.Is(err, domain.ErrHandleNotFound) {
			t.Fatalf("expected ErrHandleNotFound, got %v", err)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("expected 1 attempt for 404, got %d", n)
		}
	})

	t.Run("retries throttle responses then escalates", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := testClient(t).Get(context.Background(), domain.PlatformCodeforces, srv.URL)
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected rate-limit cause preserved, got %v", err)
		}
		// retryAttempts=2 means 3 total attempts
		if n := atomic.LoadInt32(&calls); n != 3 {
			t.Errorf("expected 3 attempts, got %d", n)
		}
	})

	t.Run("recovers when a retry succeeds", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		data, err := testClient(t).Get(context.Background(), domain.PlatformGeeksforGeeks, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "ok" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("does not retry server errors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := testClient(t).Get(context.Background(), domain.PlatformLeetCode, srv.URL)
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if errors.Is(err, domain.ErrRateLimited) {
			t.Error("server error must not be classified as rate limiting")
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("expected 1 attempt for 500, got %d", n)
		}
	})

	t.Run("posts JSON bodies", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"query":"q"}` {
				t.Errorf("unexpected body %q", body)
			}
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := testClient(t).PostJSON(context.Background(), domain.PlatformLeetCode, srv.URL,
			map[string]string{"query": "q"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
