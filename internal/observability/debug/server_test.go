package debug

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"looperd/internal/host"
	"looperd/internal/looper"
	logx "looperd/pkg/logx"
)

type fakeCtl struct {
	snap    host.Snapshot
	err     error
	toggled map[string]bool
}

func (f *fakeCtl) Snapshot(context.Context) (host.Snapshot, error) { return f.snap, f.err }

func (f *fakeCtl) SetEnabled(_ context.Context, name string, on bool) error {
	for _, l := range f.snap.Loopers {
		if l.Name == name {
			f.toggled[name] = on
			return nil
		}
	}
	return host.ErrUnknownLooper
}

func sample() *fakeCtl {
	return &fakeCtl{toggled: map[string]bool{}, snap: host.Snapshot{
		Now:   42,
		Stats: looper.Stats{Batches: 3, Executions: 5, ZeroDelta: 1},
		Loopers: []looper.TaskInfo{
			{ID: 0, Name: "beat", State: looper.Enabled, NextDue: 50, Position: 0},
			{ID: 1, Name: "count", State: looper.Disabled, NextDue: 7, Position: -1},
		},
	}}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLoopersEndpoints(t *testing.T) {
	t.Parallel()
	ctl := sample()
	h := New(Config{RunID: "r1"}, ctl, nil, logx.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/loopers")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var v snapshotView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Now != 42 || v.Executions != 5 || len(v.Loopers) != 2 {
		t.Fatalf("view = %+v", v)
	}
	if v.Loopers[0].State != "enabled" || v.Loopers[1].State != "disabled" || v.Loopers[1].Position != -1 {
		t.Fatalf("loopers = %+v", v.Loopers)
	}

	rec = do(t, h, http.MethodGet, "/loopers/count")
	var one looperView
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil || rec.Code != http.StatusOK || one.Name != "count" {
		t.Fatalf("get = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/loopers/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/loopers/count/enable"); rec.Code != http.StatusNoContent {
		t.Fatalf("enable = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/loopers/beat/disable"); rec.Code != http.StatusNoContent {
		t.Fatalf("disable = %d", rec.Code)
	}
	if !ctl.toggled["count"] || ctl.toggled["beat"] {
		t.Fatalf("toggled = %v", ctl.toggled)
	}
	if rec := do(t, h, http.MethodPost, "/loopers/nope/enable"); rec.Code != http.StatusNotFound {
		t.Fatalf("enable unknown = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/loopers/count/enable"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET enable = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"run_id":"r1"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSnapshotFailure(t *testing.T) {
	t.Parallel()
	ctl := &fakeCtl{err: host.ErrStopped}
	h := New(Config{}, ctl, nil, logx.Nop()).Handler()
	if rec := do(t, h, http.MethodGet, "/loopers"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/metrics")
	if !strings.Contains(rec.Body.String(), "looperd_scheduler_up 0") {
		t.Fatalf("metrics missing up=0:\n%s", rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	h := New(Config{}, sample(), func() uint64 { return 7 }, logx.Nop()).Handler()
	rec := do(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"looperd_scheduler_up 1",
		"looperd_executions_total 5",
		"looperd_zero_delta_total 1",
		"looperd_queue_length 1",
		"looperd_eventbus_dropped_total 7",
		`looperd_looper_enabled{looper="beat"} 1`,
		`looperd_looper_enabled{looper="count"} 0`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "s3cret"}, sample(), nil, logx.Nop()).Handler()
	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "missing", target: "/healthz", want: http.StatusUnauthorized},
		{name: "wrong query", target: "/healthz?token=nope", want: http.StatusUnauthorized},
		{name: "query", target: "/healthz?token=s3cret", want: http.StatusOK},
		{name: "bearer", target: "/loopers", header: "Bearer s3cret", want: http.StatusOK},
		{name: "wrong bearer", target: "/metrics", header: "Bearer x", want: http.StatusUnauthorized},
		{name: "raw token", target: "/healthz", header: "s3cret", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServeRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	err := New(Config{Addr: "0.0.0.0:0"}, sample(), nil, logx.Nop()).Serve(context.Background())
	if !errors.Is(err, ErrInsecureBind) {
		t.Fatalf("Serve = %v, want ErrInsecureBind", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(Config{}, sample(), nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pprof status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"[::1]:6060":     true,
		"localhost:1":    true,
		":6060":          false,
		"10.0.0.1:6060":  false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
