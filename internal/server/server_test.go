package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/config"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/metrics"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/piston"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

type testEnv struct {
	relay    *httptest.Server
	metrics  *metrics.Metrics
	upstream atomic.Int32 // upstream call count
	lastReq  atomic.Value // last X-Request-ID seen upstream
}

// newTestEnv wires a relay to a fake Piston that answers with h.
func newTestEnv(t *testing.T, cfg *config.Config, h http.HandlerFunc) *testEnv {
	t.Helper()
	env := &testEnv{metrics: metrics.New()}

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstream.Add(1)
		env.lastReq.Store(r.Header.Get("X-Request-ID"))
		h(w, r)
	}))
	t.Cleanup(up.Close)

	if cfg == nil {
		cfg = config.Default()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rn := runner.New(piston.NewClient(up.URL), runner.WithGrace(100*time.Millisecond), runner.WithLogger(logger))
	srv := New(cfg, rn, env.metrics, logger)

	env.relay = httptest.NewServer(srv.Handler())
	t.Cleanup(env.relay.Close)
	return env
}

func helloUpstream(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"run":{"stdout":"hi\n","stderr":"","code":0}}`))
}

func postRun(t *testing.T, env *testEnv, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(env.relay.URL+"/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	resp, err := http.Get(env.relay.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, welcomeMessage, out["message"])
	assert.Zero(t, env.upstream.Load())
}

func TestRunSuccess(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	resp, out := postRun(t, env, `{"language":"Python","code":"print('hi')"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"stdout":    "hi\n",
		"stderr":    "",
		"exit_code": float64(0),
		"timed_out": false,
	}, out)
	assert.Equal(t, int32(1), env.upstream.Load())

	// The relay's request id travels upstream.
	assert.Equal(t, resp.Header.Get("X-Request-ID"), env.lastReq.Load())
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRunUnsupportedLanguage(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	resp, out := postRun(t, env, `{"language":"ruby","code":"puts 1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unsupported language. Use 'python', 'java', or 'cpp'.", out["detail"])
	assert.Zero(t, env.upstream.Load())
}

func TestRunInvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	resp, out := postRun(t, env, `{"language":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["detail"], "invalid JSON")
	assert.Zero(t, env.upstream.Load())
}

func TestRunUpstreamError(t *testing.T) {
	env := newTestEnv(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream is down for maintenance"))
	})

	resp, out := postRun(t, env, `{"language":"java","code":"class Main {}"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Piston API error: upstream is down for maintenance", out["detail"])

	snap := env.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.UpstreamErrors)
	assert.Equal(t, uint64(1), snap.TotalErrors)
}

func TestRunTimeout(t *testing.T) {
	env := newTestEnv(t, nil, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	resp, out := postRun(t, env, `{"language":"cpp","code":"int main(){for(;;);}","timeout_seconds":1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"stdout":    "",
		"stderr":    "Execution timed out.",
		"exit_code": nil,
		"timed_out": true,
	}, out)
	assert.Equal(t, uint64(1), env.metrics.Snapshot().Timeouts)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	req, err := http.NewRequest(http.MethodOptions, env.relay.URL+"/run", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Custom")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Zero(t, env.upstream.Load())
}

func TestLanguagesAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)
	postRun(t, env, `{"language":"python","code":"print('hi')"}`)

	resp, err := http.Get(env.relay.URL + "/languages")
	require.NoError(t, err)
	var langs []runner.Language
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&langs))
	resp.Body.Close()
	require.Len(t, langs, 3)
	assert.Equal(t, []string{"cpp", "c++"}, langs[2].Aliases)

	resp, err = http.Get(env.relay.URL + "/metrics")
	require.NoError(t, err)
	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, uint64(1), snap.TotalRequests)
	assert.Zero(t, snap.TotalErrors)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	env := newTestEnv(t, cfg, helloUpstream)

	resp, _ := postRun(t, env, `{"language":"python","code":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := postRun(t, env, `{"language":"python","code":"1"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests", out["detail"])
	assert.Equal(t, int32(1), env.upstream.Load())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "10.0.0.7", clientIP(r))
}

// postRunFrom sends a run with the given X-Forwarded-For and returns the status.
func postRunFrom(t *testing.T, env *testEnv, forwarded string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.relay.URL+"/run", strings.NewReader(`{"language":"python","code":"1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwarded)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	env := newTestEnv(t, cfg, helloUpstream)

	accepted := 0
	for i := range 20 {
		if postRunFrom(t, env, fmt.Sprintf("10.9.9.%d", i)) == http.StatusOK {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, int32(1), env.upstream.Load())
}

func TestRateLimitTrustProxy(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	cfg.Server.TrustProxy = true
	env := newTestEnv(t, cfg, helloUpstream)

	assert.Equal(t, http.StatusOK, postRunFrom(t, env, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, postRunFrom(t, env, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, postRunFrom(t, env, "203.0.113.1"))
	assert.Equal(t, int32(2), env.upstream.Load())
}

func TestIPRateLimiterEvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }

	for i := range 100 {
		l.getLimiter(fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Equal(t, 100, l.size())

	now = now.Add(limiterIdleTTL / 2)
	l.getLimiter("10.0.0.1")

	now = now.Add(limiterIdleTTL * 3 / 4)
	l.getLimiter("10.0.1.1")
	assert.Equal(t, 2, l.size())
}

func TestIdleTTLCoversRefill(t *testing.T) {
	assert.Equal(t, limiterIdleTTL, idleTTL(rate.Limit(10), 10))
	assert.Equal(t, 1000*time.Second, idleTTL(rate.Limit(0.001), 1))
	assert.Equal(t, 24*time.Hour, idleTTL(rate.Limit(1e-9), 1))
}

func TestRunBodyTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxBodyBytes = 64
	env := newTestEnv(t, cfg, helloUpstream)

	body := fmt.Sprintf(`{"language":"python","code":%q}`, strings.Repeat("x", 256))
	resp, out := postRun(t, env, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "request body too large", out["detail"])
	assert.Zero(t, env.upstream.Load())

	resp, _ = postRun(t, env, `{"language":"python","code":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// blockingRunner holds every run until release is closed.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, req runner.RunRequest) (*runner.RunResponse, error) {
	close(b.started)
	<-b.release
	zero := 0
	return &runner.RunResponse{Stdout: "done", ExitCode: &zero}, nil
}

func TestServeWaitsForInFlightRuns(t *testing.T) {
	br := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	srv := New(config.Default(), br, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	type result struct {
		status int
		body   string
		err    error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/run", "application/json", strings.NewReader(`{"language":"python","code":"1"}`))
		if err != nil {
			results <- result{err: err}
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		results <- result{status: resp.StatusCode, body: string(data), err: err}
	}()

	<-br.started
	cancel()

	select {
	case err := <-served:
		t.Fatalf("Serve returned with a run in flight: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(br.release)

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `"stdout":"done"`)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t, nil, helloUpstream)

	url := "ws" + strings.TrimPrefix(env.relay.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "a1", "language": "python", "code": "print('hi')"}))
	var got wsOutgoing
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "result", got.Type)
	assert.Equal(t, "a1", got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, "hi\n", got.Result.Stdout)
	require.NotNil(t, got.Result.ExitCode)
	assert.Equal(t, 0, *got.Result.ExitCode)

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "a2", "language": "ruby", "code": "puts 1"}))
	got = wsOutgoing{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "error", got.Type)
	assert.Equal(t, "a2", got.ID)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Contains(t, got.Detail, "Unsupported language")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	got = wsOutgoing{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "error", got.Type)
	assert.Equal(t, http.StatusBadRequest, got.Status)

	assert.Equal(t, int32(1), env.upstream.Load())
}
