// Package server exposes detection and the cancellation lifecycle over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ravgrowth/ravbot/internal/lifecycle"
	"github.com/ravgrowth/ravbot/internal/logger"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/rs/zerolog"
)

// Config controls the HTTP runtime.
type Config struct {
	Addr         string
	EventsBuffer int
	SweepAfter   time.Duration // age of the caller's cancel_pending rows finalized by POST /v1/sweep
}

// Detector runs detection for one user.
type Detector interface {
	Run(ctx context.Context, userID string) (pipeline.Result, error)
}

// Lifecycle is the cancellation state machine.
type Lifecycle interface {
	Cancel(ctx context.Context, caller, id string) (lifecycle.Result, error)
	History(ctx context.Context, caller, id string, limit int) ([]model.SubscriptionAction, error)
	Sweep(ctx context.Context, userID string, olderThan time.Duration) (int, error)
}

// Store is the read side used by list endpoints.
type Store interface {
	ListSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error)
	ListSeries(ctx context.Context, userID string) ([]model.RecurringSeries, error)
}

// Service provides the HTTP API.
type Service struct {
	cfg       Config
	detector  Detector
	lifecycle Lifecycle
	store     Store
	log       zerolog.Logger

	mu          sync.RWMutex
	nextEventID int64
	events      []Event
	nextSubID   int
	subs        map[int]subscriber
}

// New returns a service over the given collaborators.
func New(cfg Config, d Detector, l Lifecycle, s Store, log zerolog.Logger) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.SweepAfter <= 0 {
		cfg.SweepAfter = 5 * time.Minute
	}
	return &Service{
		cfg:       cfg,
		detector:  d,
		lifecycle: l,
		store:     s,
		log:       log,
		subs:      make(map[int]subscriber),
	}
}

// Handler returns the routed API wrapped in request id, logging and recovery middleware.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/detect", s.handleDetect)
	api.HandleFunc("GET /v1/subscriptions", s.handleSubscriptions)
	api.HandleFunc("POST /v1/subscriptions/{id}/cancel", s.handleCancel)
	api.HandleFunc("GET /v1/subscriptions/{id}/actions", s.handleActions)
	api.HandleFunc("GET /v1/series", s.handleSeries)
	api.HandleFunc("POST /v1/sweep", s.handleSweep)
	api.HandleFunc("GET /v1/events", s.handleEvents)
	api.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("/v1/", RequireUser(api))

	return RequestID(Logger(s.log)(Recovery(s.log)(mux)))
}

// Run serves HTTP until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("serving")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type fetchErrorJSON struct {
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

type detectResponse struct {
	RunID       string           `json:"run_id"`
	Found       []string         `json:"found"`
	Inserted    int              `json:"inserted"`
	Updated     int              `json:"updated"`
	Accounts    int              `json:"accounts"`
	FetchErrors []fetchErrorJSON `json:"fetch_errors"`
}

func (s *Service) handleDetect(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	res, err := s.detector.Run(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := detectResponse{
		RunID:       res.RunID,
		Found:       res.Found,
		Inserted:    res.Inserted,
		Updated:     res.Updated,
		Accounts:    res.Accounts,
		FetchErrors: []fetchErrorJSON{},
	}
	for _, fe := range res.FetchErrors {
		resp.FetchErrors = append(resp.FetchErrors, fetchErrorJSON{AccountID: fe.AccountID, Error: fe.Err.Error()})
	}

	s.publishEvent(Event{Type: EventDetectionRun, UserID: user, Found: res.Found, Inserted: res.Inserted})
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Service) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubscriptions(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	showCancelled, _ := strconv.ParseBool(q.Get("show_cancelled"))
	rows := present.View(subs, present.Options{
		Sort:          present.ParseSortKey(q.Get("sort")),
		ShowCancelled: showCancelled,
	})
	if rows == nil {
		rows = []present.Row{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"subscriptions": rows,
		"totals":        present.Sum(rows),
	})
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := r.PathValue("id")
	res, err := s.lifecycle.Cancel(r.Context(), user, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publishEvent(Event{Type: EventCancelled, UserID: user, SubscriptionID: id, Status: string(res.Status)})
	WriteJSON(w, http.StatusOK, res)
}

func (s *Service) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	actions, err := s.lifecycle.History(r.Context(), UserFrom(r.Context()), r.PathValue("id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if actions == nil {
		actions = []model.SubscriptionAction{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (s *Service) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.store.ListSeries(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if series == nil {
		series = []model.RecurringSeries{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (s *Service) handleSweep(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	n, err := s.lifecycle.Sweep(r.Context(), user, s.cfg.SweepAfter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if n > 0 {
		s.publishEvent(Event{Type: EventSweep, UserID: user, Finalized: n})
	}
	WriteJSON(w, http.StatusOK, map[string]int{"finalized": n})
}

// fail maps domain errors onto HTTP statuses.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		WriteError(w, http.StatusNotFound, "subscription not found")
	case errors.Is(err, lifecycle.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, lifecycle.ErrConflict):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
