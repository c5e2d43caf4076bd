package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/infrastructure/cache"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/config"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
)

// Server is the HTTP front of the agent: webhook routes, health, metrics,
// and the background callback sweeper.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	handler    *Handler
	tracker    *calltracker.Tracker
	db         *sql.DB
	cache      cache.Cache
	logger     *zap.Logger
}

// NewServer assembles the HTTP server around an already-wired handler.
func NewServer(
	cfg *config.Config,
	handler *Handler,
	tracker *calltracker.Tracker,
	db *sql.DB,
	c cache.Cache,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		tracker: tracker,
		db:      db,
		cache:   c,
		logger:  logger,
	}

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	limiter := newIPRateLimiter(
		float64(cfg.Server.RateLimit.RequestsPerSecond),
		cfg.Server.RateLimit.BurstSize,
	)

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: chain(mux,
			recoveryMiddleware(logger),
			loggingMiddleware(logger),
			limiter.Middleware(),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Start serves until SIGINT/SIGTERM, then drains within the configured
// shutdown timeout. The callback sweeper runs for the server's lifetime.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.runCallbackSweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runCallbackSweeper periodically promotes due scheduled callbacks to
// outgoing calls.
func (s *Server) runCallbackSweeper(ctx context.Context) {
	interval := s.cfg.Agent.CallbackSweep
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			executed, err := s.tracker.SweepDueCallbacks(ctx)
			if err != nil {
				s.logger.Error("callback sweep failed", zap.Error(err))
				continue
			}
			if executed > 0 {
				s.logger.Info("callback sweep complete", zap.Int("executed", executed))
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "cache": "ok"}
	healthy := true

	if err := s.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if _, err := s.cache.Exists(ctx, "health"); err != nil {
		checks["cache"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       state,
		"version":      s.cfg.Version,
		"checks":       checks,
		"active_calls": s.tracker.ActiveCount(),
	})
}
