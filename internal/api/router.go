package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
)

// routes builds the router with logging and panic recovery applied to
// every endpoint.
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/screens/{id:[0-9]+}/screen", s.handleRunScreening).Methods(http.MethodPost)
	api.HandleFunc("/screens/{id:[0-9]+}/watchlist", s.handleGetWatchlist).Methods(http.MethodGet)
	api.HandleFunc("/screens/{id:[0-9]+}/watchlist/{ticker}", s.handleRemoveWatchlistEntry).Methods(http.MethodDelete)
	api.HandleFunc("/screens/{id:[0-9]+}/opportunities", s.handleGetOpportunities).Methods(http.MethodGet)

	api.HandleFunc("/backtests", s.handleStartBacktest).Methods(http.MethodPost)
	api.HandleFunc("/papertrades", s.handleStartPaperTrade).Methods(http.MethodPost)

	api.HandleFunc("/runs/{id:[0-9]+}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[0-9]+}/start", s.handleStartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id:[0-9]+}/stop", s.handleStopRun).Methods(http.MethodPost)

	api.HandleFunc("/positions/{id:[0-9]+}/sell", s.handleSellPosition).Methods(http.MethodPost)

	api.HandleFunc("/scheduler/history", s.handleSchedulerHistory).Methods(http.MethodGet)

	return r
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		s.logger.WithFields(map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithFields(map[string]interface{}{
					"panic": rec,
					"path":  req.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("Panic in handler")
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, req)
	})
}
