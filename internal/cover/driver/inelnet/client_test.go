package inelnet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server, retries int, retryDelay time.Duration) *Client {
	return NewClient(ClientConfig{
		Host:       strings.TrimPrefix(srv.URL, "http://"),
		Timeout:    time.Second,
		Retries:    retries,
		RetryDelay: retryDelay,
	})
}

func TestSendCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a form encoded command", func(t *testing.T) {
		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/msg.htm", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "3", r.PostForm.Get("send_ch"))
			assert.Equal(t, "160", r.PostForm.Get("send_act"))
		}))
		defer srv.Close()

		client := newTestClient(srv, 2, time.Millisecond)
		assert.True(t, client.SendCommand(ctx, 3, ActionUp))
		assert.Equal(t, 1, attempts)
	})

	t.Run("returns false when the controller keeps failing", func(t *testing.T) {
		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := newTestClient(srv, 2, time.Millisecond)
		assert.False(t, client.SendCommand(ctx, 1, ActionStop))
		assert.Equal(t, 2, attempts)
	})

	t.Run("waits exactly once between two failing attempts", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		retryDelay := 100 * time.Millisecond
		client := newTestClient(srv, 2, retryDelay)

		start := time.Now()
		assert.False(t, client.SendCommand(ctx, 1, ActionDown))
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, retryDelay)
		assert.Less(t, elapsed, 2*retryDelay)
	})

	t.Run("recovers on the second attempt", func(t *testing.T) {
		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusBadGateway)
			}
		}))
		defer srv.Close()

		client := newTestClient(srv, 2, time.Millisecond)
		assert.True(t, client.SendCommand(ctx, 1, ActionUp))
		assert.Equal(t, 2, attempts)
	})

	t.Run("non-200 success codes are not accepted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		client := newTestClient(srv, 2, time.Millisecond)
		assert.False(t, client.SendCommand(ctx, 1, ActionUp))
	})
}

func TestSendCommandUnreachableController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(srv, 2, time.Millisecond)
	assert.False(t, client.SendCommand(context.Background(), 1, ActionUp))
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("true on 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
		}))
		defer srv.Close()

		assert.True(t, newTestClient(srv, 2, time.Millisecond).TestConnection(ctx))
	})

	t.Run("false on server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		assert.False(t, newTestClient(srv, 2, time.Millisecond).TestConnection(ctx))
	})

	t.Run("false when unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		assert.False(t, newTestClient(srv, 2, time.Millisecond).TestConnection(ctx))
	})
}

func TestSendRaw(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		received = append(received, r.PostForm.Get("send_act"))
		mu.Unlock()
	}))
	defer srv.Close()

	client := newTestClient(srv, 2, time.Millisecond)

	t.Run("valid code is delivered", func(t *testing.T) {
		assert.True(t, client.SendRaw(ctx, 4, 144))
		assert.Equal(t, []string{"144"}, received)
	})

	t.Run("unknown code is refused without a request", func(t *testing.T) {
		assert.False(t, client.SendRaw(ctx, 4, 42))
		assert.Len(t, received, 1)
	})

	t.Run("program code is reserved", func(t *testing.T) {
		assert.False(t, client.SendRaw(ctx, 4, int(ActionProgram)))
		assert.Len(t, received, 1)
	})
}
