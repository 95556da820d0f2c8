// Package inspector serves run events and history over HTTP.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/chainexpect/pkg/events"
	"github.com/cgast/chainexpect/pkg/history"
	"github.com/cgast/chainexpect/pkg/registry"
)

// RunStore is the part of history.Store the inspector reads.
type RunStore interface {
	ListRuns(limit int) ([]history.Run, error)
	GetRun(id string) (history.Run, error)
}

// Server exposes a live event stream plus read-only run history.
type Server struct {
	bus       events.EventBus
	runs      RunStore
	steps     *registry.Registry
	logger    *zap.Logger
	mux       *http.ServeMux
	startTime time.Time

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	send chan []byte
}

// New creates an inspector. runs and steps may be nil.
func New(bus events.EventBus, runs RunStore, steps *registry.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		bus:       bus,
		runs:      runs,
		steps:     steps,
		logger:    logger,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
		clients:   make(map[*client]bool),
	}

	s.mux.HandleFunc("GET /events", s.handleStream)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	s.mux.HandleFunc("GET /api/steps", s.handleSteps)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ch := s.bus.Subscribe()
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		s.broadcast(ch)
	}()
	defer func() {
		s.bus.Unsubscribe(ch)
		<-broadcastDone
	}()

	srv := &http.Server{
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("inspector listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	<-shutdownDone
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inspector listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) broadcast(ch <-chan events.Event) {
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		s.mu.Lock()
		for c := range s.clients {
			select {
			case c.send <- data:
			default:
			}
		}
		s.mu.Unlock()
	}
}

// handleStream sends retained events and then live ones as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	for _, ev := range s.bus.History(time.Time{}) {
		if data, err := json.Marshal(ev); err == nil {
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-c.send:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := make(map[events.EventType]int)
	retained := s.bus.History(time.Time{})
	for _, ev := range retained {
		counts[ev.Type]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"events": len(retained),
		"runs":   counts[events.EventSuiteEnd],
		"passed": counts[events.EventCheckPass],
		"failed": counts[events.EventCheckFail],
		"errors": counts[events.EventCheckError],
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("since: %w", err))
			return
		}
		since = t
	}
	writeJSON(w, http.StatusOK, s.bus.History(since))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []history.Run{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, history.ErrNotFound)
		return
	}
	run, err := s.runs.GetRun(r.PathValue("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	infos := []map[string]any{}
	if s.steps != nil {
		for _, d := range s.steps.List(r.URL.Query().Get("category")) {
			infos = append(infos, map[string]any{
				"name":        d.Name,
				"usage":       d.Usage(),
				"kind":        d.Kind.String(),
				"category":    d.Category,
				"description": d.Description,
			})
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
