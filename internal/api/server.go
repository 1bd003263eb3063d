package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mwhitt/alphascreen/internal/orchestrator"
	"github.com/mwhitt/alphascreen/internal/scheduler"
	"github.com/mwhitt/alphascreen/internal/screening"
	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/database"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// Server is the HTTP control surface for the engine.
type Server struct {
	httpServer *http.Server
	orch       *orchestrator.Orchestrator
	screens    *screening.Repository
	sched      *scheduler.Scheduler
	db         *database.DB
	logger     *logger.Logger
}

// NewServer creates the API server with all routes wired.
func NewServer(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	screens *screening.Repository,
	sched *scheduler.Scheduler,
	db *database.DB,
	log *logger.Logger,
) *Server {
	s := &Server{
		orch:    orch,
		screens: screens,
		sched:   sched,
		db:      db,
		logger:  log,
	}

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
