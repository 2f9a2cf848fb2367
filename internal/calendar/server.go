package calendar

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"htbwatch/internal/storage"
	"htbwatch/pkg/logx"
)

const (
	defaultAddr          = "127.0.0.1:8099"
	defaultLookbackDays  = 30
	defaultLookaheadDays = 120
	defaultDuration      = 120 * time.Minute
)

// Releases is the store slice the calendar reads.
type Releases interface {
	ReleasesBetween(ctx context.Context, from, to time.Time) ([]storage.Release, error)
}

// Config tunes the ICS projection window.
type Config struct {
	Addr          string
	LookbackDays  int
	LookaheadDays int
	EventDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaultLookbackDays
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = defaultLookaheadDays
	}
	if c.EventDuration <= 0 {
		c.EventDuration = defaultDuration
	}
	return c
}

// Server serves GET /calendar.ics. Reads go straight to the store, so the
// feed always reflects the latest announcements.
type Server struct {
	cfg      Config
	releases Releases
	log      logx.Logger
	now      func() time.Time
}

func NewServer(cfg Config, releases Releases, log logx.Logger) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		releases: releases,
		log:      log,
		now:      time.Now,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendar.ics", s.handleICS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	s.log.Info("calendar server started", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	now := s.now()
	from := now.AddDate(0, 0, -s.cfg.LookbackDays)
	to := now.AddDate(0, 0, s.cfg.LookaheadDays)

	releases, err := s.releases.ReleasesBetween(r.Context(), from, to)
	if err != nil {
		s.log.Error("release query failed", logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body := RenderICS(releases, s.cfg.EventDuration, now)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="htb-releases.ics"`)
	_, _ = w.Write([]byte(body))
}
