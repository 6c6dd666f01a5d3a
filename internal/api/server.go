// Package api exposes the daemon's localhost status API: REST endpoints for
// the app shell to trigger syncs and read state, and a websocket stream that
// pushes sync state changes to the UI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/cloudsync"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
)

// Server is the localhost-only HTTP API.
type Server struct {
	orch    *cloudsync.Orchestrator
	sync    *cloudsync.Syncer
	records *record.Store
	hub     *Hub
	log     *zap.Logger
	httpSrv *http.Server
}

// NewServer builds the API server. The returned server is not listening yet;
// call Start.
func NewServer(port int, orch *cloudsync.Orchestrator, sync *cloudsync.Syncer, records *record.Store, hub *Hub, log *zap.Logger) *Server {
	s := &Server{
		orch:    orch,
		sync:    sync,
		records: records,
		hub:     hub,
		log:     log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/sync/status", s.handleSyncStatus).Methods(http.MethodGet)
	v1.HandleFunc("/sync", s.handleSyncTrigger).Methods(http.MethodPost)
	v1.HandleFunc("/sync/ws", s.handleSyncSocket).Methods(http.MethodGet)
	v1.HandleFunc("/records", s.handleListRecords).Methods(http.MethodGet)
	v1.HandleFunc("/records", s.handleCreateRecord).Methods(http.MethodPost)
	v1.HandleFunc("/records/{id}", s.handleUpdateRecord).Methods(http.MethodPut)
	v1.HandleFunc("/records/{id}", s.handleDeleteRecord).Methods(http.MethodDelete)
	v1.HandleFunc("/records/{id}/favorite", s.handleToggleFavorite).Methods(http.MethodPost)

	s.httpSrv = &http.Server{
		// The API serves only the local app shell.
		Addr:         net.JoinHostPort("127.0.0.1", fmt.Sprint(port)),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}
	return s
}

// Start listens and serves until Shutdown. Blocks.
func (s *Server) Start() error {
	s.log.Info("status api listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.State())
}

// handleSyncTrigger starts a cycle in the background. 202 when started, 409
// when one is already in flight.
func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if s.orch.State().Syncing {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already in progress"})
		return
	}
	go s.orch.SyncWithCloud(context.Background())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.records.List(r.Context()))
}

// recordRequest is the mutation payload from the app shell.
type recordRequest struct {
	Title   string          `json:"title"`
	Inputs  json.RawMessage `json:"inputs,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Title == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	rec := s.sync.Create(r.Context(), req.Title, req.Inputs, req.Results)
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	rec, err := s.sync.Update(r.Context(), mux.Vars(r)["id"], req.Title, req.Inputs, req.Results)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.DeleteOne(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	rec, err := s.sync.ToggleFavorite(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSyncSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.orch.State())
}
