package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"webhookgw/internal/dispatch"
	"webhookgw/internal/history"
	"webhookgw/internal/store"
)

// Server assembles the Control API and the webhook Router behind a single
// *http.Server, following the teacher's internal/server/server.go
// ReadTimeout/WriteTimeout/IdleTimeout conventions.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer wires the Config Store, history ring, and dispatcher into a
// ready-to-serve Server listening on addr.
func NewServer(addr string, s *store.Store, h *history.Ring, d *dispatch.Dispatcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	router := NewRouter(s, h, d, log)
	control := NewControlAPI(s, h, d, log)

	mux := http.NewServeMux()
	control.Register(mux)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("/", router)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      recoverMiddleware(log)(mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the assembled mux for tests that want to drive the
// server through httptest.NewServer without binding a real socket.
func (srv *Server) Handler() http.Handler {
	return srv.httpServer.Handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recoverMiddleware guards every request so a panic anywhere in the
// transform pipeline, a formatter, or a control handler never kills the
// server loop (spec.md §7: "no exception is allowed to terminate the
// process"), mirroring the teacher's recover-and-500 handler wrapping in
// internal/server/http.go.
func recoverMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered while handling request",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Run starts the server and blocks until a SIGINT/SIGTERM is received,
// then drains in-flight requests within the shutdown grace period.
func (srv *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		srv.log.Info("server listening", zap.String("addr", srv.httpServer.Addr))
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		srv.log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-serveErr:
		return err
	}
}
