// Package debug serves the optional debug HTTP endpoint: a liveness probe,
// a JSON view of the looper registry with enable/disable actions, Prometheus
// metrics and the pprof handlers.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"looperd/internal/host"
	logx "looperd/pkg/logx"
)

// ErrInsecureBind is returned when a non-loopback address has no token.
var ErrInsecureBind = errors.New("debug: non-loopback addr requires a token")

type Config struct {
	Addr  string
	Token string
	// RunID identifies this process in /healthz.
	RunID string
}

// Controller is implemented by host.Runner.
type Controller interface {
	Snapshot(ctx context.Context) (host.Snapshot, error)
	SetEnabled(ctx context.Context, name string, on bool) error
}

type Server struct {
	cfg Config
	log logx.Logger
	ctl Controller
	reg *prometheus.Registry
}

// New builds the server. dropped, when non-nil, reports events lost by the
// event bus.
func New(cfg Config, ctl Controller, dropped func() uint64, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newCollector(ctl, dropped),
	)
	return &Server{cfg: cfg, log: log, ctl: ctl, reg: reg}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(auth(s.cfg.Token))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	r.Route("/loopers", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Post("/enable", s.handleToggle(true))
			r.Post("/disable", s.handleToggle(false))
		})
	})
	r.Mount("/debug", middleware.Profiler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": s.cfg.RunID})
}

func (s *Server) snapshot(r *http.Request) (host.Snapshot, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	return s.ctl.Snapshot(ctx)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(snap))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.snapshot(r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	for _, l := range snap.Loopers {
		if l.Name == name {
			writeJSON(w, http.StatusOK, newLooperView(l))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", host.ErrUnknownLooper, name))
}

func (s *Server) handleToggle(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err := s.ctl.SetEnabled(ctx, name, on)
		switch {
		case errors.Is(err, host.ErrUnknownLooper):
			writeError(w, http.StatusNotFound, err)
			return
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		s.log.Info("looper toggled over http", logx.String("looper", name), logx.Bool("enabled", on))
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// auth accepts "Authorization: Bearer <token>" or ?token=<token>.
func auth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					got = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
				}
			}
			if got != tok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Serve listens on the configured address until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return fmt.Errorf("%w: %q", ErrInsecureBind, addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}()

	s.log.Info("debug server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	err := srv.Serve(ln)
	if ctx.Err() != nil {
		s.log.Info("debug server stopped")
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("debug server exited unexpectedly")
	}
	return err
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
