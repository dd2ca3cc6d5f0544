// ABOUTME: JSON HTTP API for subscription calendar sync
// ABOUTME: Routes requests from the product's frontend to the sync engine and verify codes
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/harperreed/subcal/sync"
	"github.com/harperreed/subcal/verify"
)

// CodeSender delivers a verification code to its destination.
type CodeSender func(ctx context.Context, destination, code string) error

type Options struct {
	MinConfidence float64
	Codes         *verify.Codes
	SendCode      CodeSender
	Logger        *log.Logger
}

type Server struct {
	engine        *sync.Engine
	codes         *verify.Codes
	sendCode      CodeSender
	minConfidence float64
	logger        *log.Logger
	router        *mux.Router
}

func NewServer(engine *sync.Engine, opts Options) *Server {
	s := &Server{
		engine:        engine,
		codes:         opts.Codes,
		sendCode:      opts.SendCode,
		minConfidence: opts.MinConfidence,
		logger:        opts.Logger,
	}

	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.codes == nil {
		s.codes = verify.NewCodes(verify.NewMemoryStore(nil), verify.Options{Logger: s.logger})
	}
	if s.sendCode == nil {
		// Delivery belongs to the notification service; log so local setups stay usable.
		s.sendCode = func(_ context.Context, destination, code string) error {
			s.logger.Info("verification code", "destination", destination, "code", code)
			return nil
		}
	}

	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(Logging(s.logger))
	r.Use(ErrorRecovery(s.logger))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(RequireUser)

	authed.HandleFunc("/calendar/status", s.handleCalendarStatus).Methods("GET")
	authed.HandleFunc("/calendar/ensure", s.handleEnsureCalendar).Methods("POST")
	authed.HandleFunc("/calendar/sync", s.handleSync).Methods("POST")
	authed.HandleFunc("/calendar/cleanup", s.handleCleanup).Methods("POST")
	authed.HandleFunc("/calendar/{calendarID}/events/{eventID}", s.handleDeleteEvent).Methods("DELETE")

	authed.HandleFunc("/subscriptions", s.handleListSubscriptions).Methods("GET")
	authed.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods("POST")
	authed.HandleFunc("/subscriptions/ingest", s.handleIngest).Methods("POST")
	authed.HandleFunc("/subscriptions/{id}/events", s.handleCreateEvent).Methods("POST")

	authed.HandleFunc("/verify/codes", s.handleIssueCode).Methods("POST")
	authed.HandleFunc("/verify/check", s.handleCheckCode).Methods("POST")

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

// writeEngineError maps engine failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sync.ErrNotConnected), errors.Is(err, sync.ErrTokenExpired):
		WriteError(w, http.StatusConflict, ErrNotConnected, err.Error())
	case errors.Is(err, sync.ErrSubscriptionNotFound):
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
	default:
		WriteError(w, http.StatusBadGateway, ErrProvider, err.Error())
	}
}
