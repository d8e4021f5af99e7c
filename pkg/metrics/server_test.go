package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := ServerConfig{}
	cfg.applyDefaults()
	assert.Equal(t, DefaultPort, cfg.Port)

	cfg = ServerConfig{Port: -1}
	cfg.applyDefaults()
	assert.Equal(t, 0, cfg.Port)
}

func TestReadiness(t *testing.T) {
	s := NewServer(ServerConfig{})

	code, _ := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.MarkReady()
	code, body := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ready")

	require.NoError(t, s.Stop(context.Background()))
	code, _ = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code, "stopping clears readiness")
}

func TestMetricsEndpoint(t *testing.T) {
	if !IsEnabled() {
		code, _ := get(t, NewServer(ServerConfig{}).Handler(), "/metrics")
		assert.Equal(t, http.StatusServiceUnavailable, code)
	}

	InitRegistry()
	code, body := get(t, NewServer(ServerConfig{}).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestStartServesUntilCancelled(t *testing.T) {
	s := NewServer(ServerConfig{Port: -1, Address: "127.0.0.1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", s.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartFailsOnBusyPort(t *testing.T) {
	first := NewServer(ServerConfig{Port: -1, Address: "127.0.0.1"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	require.Eventually(t, func() bool { return first.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	port := first.Addr().(*net.TCPAddr).Port
	second := NewServer(ServerConfig{Port: port, Address: "127.0.0.1"})
	err := second.Start(context.Background())
	assert.Error(t, err)
}
