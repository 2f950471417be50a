package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameStreamHost is a minimal host that accepts launches of one app
type gameStreamHost struct {
	mu      sync.Mutex
	running int
	calls   []string
}

func (g *gameStreamHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	method := strings.TrimPrefix(r.URL.Path, "/")
	g.calls = append(g.calls, method)

	switch method {
	case "serverinfo":
		fmt.Fprintf(w, `<root status_code="200"><hostname>test</hostname><appversion>7.1.431.0</appversion>`+
			`<ServerCodecModeSupport>257</ServerCodecModeSupport><currentgame>%d</currentgame>`+
			`<state>SUNSHINE_SERVER_FREE</state></root>`, g.running)
	case "applist":
		fmt.Fprint(w, `<root status_code="200"><App><AppTitle>Desktop</AppTitle><ID>881448767</ID></App></root>`)
	case "launch":
		g.running = 881448767
		fmt.Fprint(w, `<root status_code="200"><gamesession>1</gamesession><sessionUrl0>rtsp://127.0.0.1:48010</sessionUrl0></root>`)
	case "cancel":
		g.running = 0
		fmt.Fprint(w, `<root status_code="200"><cancel>1</cancel></root>`)
	default:
		http.NotFound(w, r)
	}
}

func (g *gameStreamHost) called(method string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.calls {
		if c == method {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Stream.SettingsPath = filepath.Join(t.TempDir(), "moonlit.toml")
	cfg.Stream.WatchSettings = false
	cfg.RateLimit.Enabled = false
	cfg.Input.Gamepads = 1
	cfg.Host.Retries = 0
	cfg.Host.RPS = 0

	srv, err := NewServer(cfg, WithLogger(logging.NewNop()), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Close(ctx)
	})
	return srv
}

func request(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerSessionLifecycle(t *testing.T) {
	host := &gameStreamHost{}
	gs := httptest.NewServer(host)
	defer gs.Close()
	address := gs.Listener.Addr().String()

	srv := newTestServer(t)
	h := srv.Handler()

	w := request(t, h, http.MethodGet, "/hosts/"+address+"/apps", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Desktop")

	w = request(t, h, http.MethodPost, "/session", map[string]any{"host": address, "app_id": 881448767})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return srv.Manager().Status() == streaming.PhaseStreaming
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, host.called("launch"))

	w = request(t, h, http.MethodPost, "/session", map[string]any{"host": address, "app_id": 881448767})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = request(t, h, http.MethodDelete, "/session?wait=true&timeout=5s", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, streaming.PhaseNone, srv.Manager().Status())
	assert.True(t, host.called("cancel"))
}

func TestServerUnreachableHost(t *testing.T) {
	gs := httptest.NewServer(http.NotFoundHandler())
	address := gs.Listener.Addr().String()
	gs.Close()

	srv := newTestServer(t)
	w := request(t, srv.Handler(), http.MethodPost, "/session", map[string]any{"host": address, "app_id": 1})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "host_unreachable")
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	require.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/health", nil).Code)

	w := request(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "moonlit_http_requests_total")

	w = request(t, h, http.MethodGet, "/metrics/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_requests")
}

func TestServerCloseBeforeRun(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Close(ctx))
	require.NoError(t, srv.Close(ctx))

	errc := make(chan error, 1)
	go func() { errc <- srv.Run() }()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept serving after Close")
	}
}

func TestServerRejectsUnknownTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.SettingsPath = filepath.Join(t.TempDir(), "moonlit.toml")
	cfg.Stream.WatchSettings = false
	cfg.Transport.Driver = "carrier-pigeon"

	_, err := NewServer(cfg, WithLogger(logging.NewNop()), WithRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}
