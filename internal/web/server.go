// Package web serves the local read-only status endpoints for operators.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/RocoByte/vorio-agent/internal/agent"
	"github.com/RocoByte/vorio-agent/internal/model"
)

// StatusProvider is what the server needs from the orchestrator.
type StatusProvider interface {
	State() agent.State
	Status() model.AgentStatus
}

type Server struct {
	svc    StatusProvider
	log    *logrus.Logger
	server *http.Server
}

func New(addr string, svc StatusProvider, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, log: logger}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	router.HandleFunc("/api/status", s.statusHandler).Methods("GET")

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves in the background; a closed listener after Shutdown is not an
// error.
func (s *Server) Start() {
	go func() {
		s.log.Infof("status server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("status server failed: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Warnf("status server shutdown: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := s.svc.Status()
	s.writeJSON(w, map[string]any{
		"state":        s.svc.State(),
		"connected":    status.Connected,
		"lastSync":     status.LastSync,
		"lastError":    status.LastError,
		"voucherCount": status.VoucherCount,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed to encode response: %v", err)
	}
}
