package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/market-sync/internal/database"
	"github.com/market-sync/internal/exchange"
	"github.com/market-sync/internal/monitor"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/models"
)

// Server represents the monitor HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	// Dependencies
	store         *database.SQLiteClient
	reconstructor *monitor.Reconstructor
	runner        *monitor.Runner
}

// StatusResponse is the full dashboard state. Every field is best
// effort: a broken store or a missing log degrades its section, the
// endpoint itself never fails.
type StatusResponse struct {
	IsRunning   bool   `json:"is_running"`
	LastRun     string `json:"last_run"`
	TokenValid  bool   `json:"token_valid"`
	TokenExpiry string `json:"token_expiry"`

	TotalSymbols  int                             `json:"total_symbols"`
	Processed     int                             `json:"processed"`
	Updated       int                             `json:"updated"`
	UpToDate      int                             `json:"up_to_date"`
	TotalCandles  int                             `json:"total_candles"`
	CurrentSymbol string                          `json:"current_symbol"`
	SymbolResults map[string]models.ProgressEntry `json:"symbol_results"`

	TableName     string  `json:"table_name"`
	TotalDBRows   int64   `json:"total_db_rows"`
	UniqueSymbols int     `json:"unique_symbols"`
	MinDate       string  `json:"min_date"`
	MaxDate       string  `json:"max_date"`
	DBSizeMB      float64 `json:"db_size_mb"`
}

// NewServer creates a new monitor API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	store *database.SQLiteClient,
	reconstructor *monitor.Reconstructor,
	runner *monitor.Runner,
) *Server {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		reconstructor: reconstructor,
		runner:        runner,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Apply middleware before defining routes
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Server.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	// API versioning
	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.HandleFunc("/status", s.handleStatus).Methods("GET")
	apiV1.HandleFunc("/snapshot/latest", s.handleLatestCandles).Methods("GET")
	apiV1.HandleFunc("/backfill/start", s.handleStartBackfill).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use. Try: 1) Kill the process using it: lsof -ti:%d | xargs -r kill -9, or 2) Use a different port: --port 8081", s.cfg.Server.Port, s.cfg.Server.Port)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(next)
}

// Handler functions

// handleHealth checks the health status of the store and run log
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := s.store != nil && s.store.Health(r.Context()) == nil

	health := map[string]interface{}{
		"status": "healthy",
		"services": map[string]bool{
			"store": storeOK,
		},
		"timestamp": time.Now().Unix(),
	}
	if !storeOK {
		health["status"] = "degraded"
	}

	s.writeJSON(w, health)
}

// handleStatus assembles the dashboard state from the run log, the
// candle store, and the token file. Each section degrades
// independently so the dashboard keeps rendering through partial
// outages.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.reconstructor.Snapshot()

	resp := &StatusResponse{
		IsRunning:     s.runner.IsRunning(),
		CurrentSymbol: snap.CurrentSymbol,
		TotalSymbols:  snap.TotalSymbols,
		Processed:     snap.Processed,
		Updated:       snap.Updated,
		UpToDate:      snap.UpToDate,
		TotalCandles:  snap.TotalCandles,
		SymbolResults: snap.Symbols,
		TableName:     s.cfg.Store.TableName,
		MinDate:       "N/A",
		MaxDate:       "N/A",
	}

	if last := s.runner.LastRun(); !last.IsZero() {
		resp.LastRun = last.Format(time.RFC3339)
	}
	if !resp.IsRunning {
		resp.CurrentSymbol = "Idle"
	}

	resp.TokenValid, resp.TokenExpiry = exchange.ReadTokenStatus(s.cfg.Fyers.TokenPath)

	if stats, err := s.store.Stats(r.Context()); err != nil {
		s.logger.WithError(err).Warn("Store stats unavailable")
	} else {
		resp.TotalDBRows = stats.TotalRows
		resp.UniqueSymbols = stats.UniqueSymbols
		resp.MinDate = stats.MinDate
		resp.MaxDate = stats.MaxDate
		resp.DBSizeMB = stats.SizeMB
	}

	s.writeJSON(w, resp)
}

// handleLatestCandles returns the most recently written store rows
func (s *Server) handleLatestCandles(w http.ResponseWriter, r *http.Request) {
	candles, err := s.store.RecentCandles(r.Context(), 10)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read recent candles")
		candles = nil
	}

	rows := make([]map[string]interface{}, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, map[string]interface{}{
			"symbol":     c.Symbol,
			"trade_date": c.DateString(),
			"open":       c.Open,
			"high":       c.High,
			"low":        c.Low,
			"close":      c.Close,
			"volume":     c.Volume,
			"source":     c.Source,
		})
	}

	s.writeJSON(w, map[string]interface{}{
		"candles": rows,
		"count":   len(rows),
	})
}

// handleStartBackfill launches a detached backfill run
func (s *Server) handleStartBackfill(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Start()
	switch {
	case err == nil:
		s.writeJSON(w, map[string]string{"message": "Started"})
	case err == monitor.ErrBusy:
		s.writeJSON(w, map[string]string{"message": "Busy"})
	default:
		s.logger.WithError(err).Error("Failed to launch backfill run")
		http.Error(w, "Failed to start backfill", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
