package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/logging"
	"github.com/nerrad567/soilsense-core/internal/pipeline"
)

// fakeTransport reports a configurable health error.
type fakeTransport struct {
	err error
}

func (f *fakeTransport) HealthCheck(context.Context) error { return f.err }

// fakePipeline reports a configurable state.
type fakePipeline struct {
	state atomic.Int32
}

func newFakePipeline(s pipeline.State) *fakePipeline {
	p := &fakePipeline{}
	p.state.Store(int32(s))
	return p
}

func (f *fakePipeline) State() pipeline.State { return pipeline.State(f.state.Load()) }

func testServer(t *testing.T, transport HealthChecker, p StateReporter, gatherer prometheus.Gatherer) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config:    config.StatusConfig{Enabled: true, Host: "127.0.0.1", Port: 0},
		Logger:    logging.Discard(),
		Transport: transport,
		Pipeline:  p,
		Gatherer:  gatherer,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ==================== Construction ====================

func TestNew_MissingDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{name: "no logger", deps: Deps{Transport: &fakeTransport{}, Pipeline: newFakePipeline(pipeline.StateIdle)}},
		{name: "no transport", deps: Deps{Logger: logging.Discard(), Pipeline: newFakePipeline(pipeline.StateIdle)}},
		{name: "no pipeline", deps: Deps{Logger: logging.Discard(), Transport: &fakeTransport{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

// ==================== Health ====================

func TestHealthz(t *testing.T) {
	srv := testServer(t, &fakeTransport{err: errors.New("down")}, newFakePipeline(pipeline.StateTerminated), nil)

	rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Version != "test" {
		t.Errorf("version = %q, want %q", body.Version, "test")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestHealthz_KeepsClientRequestID(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-1")
	}
}

// ==================== Readiness ====================

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		transport  error
		state      pipeline.State
		wantStatus int
	}{
		{name: "connected and draining", state: pipeline.StateDraining, wantStatus: http.StatusOK},
		{name: "idle", state: pipeline.StateIdle, wantStatus: http.StatusServiceUnavailable},
		{name: "subscribed", state: pipeline.StateSubscribed, wantStatus: http.StatusServiceUnavailable},
		{name: "stopped", state: pipeline.StateStopped, wantStatus: http.StatusServiceUnavailable},
		{name: "terminated", state: pipeline.StateTerminated, wantStatus: http.StatusServiceUnavailable},
		{
			name:       "transport down",
			transport:  errors.New("mqtt not connected"),
			state:      pipeline.StateDraining,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &fakeTransport{err: tt.transport}, newFakePipeline(tt.state), nil)

			rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/readyz")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var body Error
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decoding body: %v", err)
				}
				if body.Code != ErrCodeNotReady {
					t.Errorf("code = %q, want %q", body.Code, ErrCodeNotReady)
				}
			}
		})
	}
}

func TestReadyz_FollowsPipelineState(t *testing.T) {
	p := newFakePipeline(pipeline.StateSubscribed)
	srv := testServer(t, &fakeTransport{}, p, nil)
	router := srv.buildRouter()

	if rec := doRequest(t, router, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before draining: status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	p.state.Store(int32(pipeline.StateDraining))
	if rec := doRequest(t, router, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("while draining: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// ==================== Metrics ====================

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	received := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilsense_pipeline_received_total",
		Help: "test counter",
	})
	reg.MustRegister(received)
	received.Add(3)

	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), reg)

	rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "soilsense_pipeline_received_total 3") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}

// ==================== Routing ====================

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)

	rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/readings")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)

	rec := doRequest(t, srv.buildRouter(), http.MethodPost, "/healthz")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := doRequest(t, h, http.MethodGet, "/")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// ==================== Lifecycle ====================

func TestServer_StartClose(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start expected error")
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() before Start = %q, want empty", srv.Addr())
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() expected error")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, http.StatusOK, body)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Close()

	second := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateDraining), nil)
	second.cfg.Host, second.cfg.Port = splitHostPort(t, first.Addr())
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Error("Start() on a bound port expected error")
	}
}

func TestServer_CloseNotStarted(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateIdle), nil)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	srv := testServer(t, &fakeTransport{}, newFakePipeline(pipeline.StateIdle), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	u, err := url.Parse("http://" + addr)
	if err != nil {
		t.Fatalf("parsing %q: %v", addr, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing port of %q: %v", addr, err)
	}
	return u.Hostname(), port
}
