// Package api exposes the rooms over HTTP: their state, a websocket stream of updates, and a way to set their target temperature.
package api

import (
	"encoding/json"
	"errors"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/gorilla/websocket"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Registry gives access to the devices.
type Registry interface {
	Devices() []*device.Device
	Device(id int) (*device.Device, bool)
}

// Server handles the API requests.
type Server struct {
	registry Registry
	poller   poller.Poller
	logger   *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func New(registry Registry, p poller.Poller, logger *slog.Logger) *Server {
	s := Server{
		registry: registry,
		poller:   p,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /rooms", s.listRooms)
	s.mux.HandleFunc("GET /rooms/stream", s.stream)
	s.mux.HandleFunc("GET /rooms/{id}", s.getRoom)
	s.mux.HandleFunc("POST /rooms/{id}/target", s.setTarget)
	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) listRooms(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	states := make([]device.State, len(devices))
	for i, d := range devices {
		states[i] = d.State()
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if ok {
		s.writeJSON(w, http.StatusOK, d.State())
	}
}

// TargetRequest is the body of a set target request. A null or missing temperature leaves the target unchanged.
type TargetRequest struct {
	Temperature *float64 `json:"temperature"`
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req TargetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := d.SetTarget(r.Context(), req.Temperature); err != nil {
		statusCode := http.StatusBadGateway
		if errors.Is(err, adax.ErrInvalidTemperature) {
			statusCode = http.StatusBadRequest
		}
		http.Error(w, err.Error(), statusCode)
		return
	}
	s.writeJSON(w, http.StatusOK, d.State())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return nil, false
	}
	d, ok := s.registry.Device(id)
	if !ok {
		http.Error(w, device.ErrRoomNotFound.Error(), http.StatusNotFound)
	}
	return d, ok
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

const writeTimeout = 10 * time.Second

// stream sends every Update published by the poller to the client, until the client disconnects.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Warn("failed to upgrade connection", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.poller.Subscribe()
	defer s.poller.Unsubscribe(ch)

	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Debug("stream started")
	defer logger.Debug("stream stopped")

	// the client doesn't send anything. reading detects when it goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case update := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err = conn.WriteJSON(update); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.Warn("failed to send update", "err", err)
				}
				return
			}
		}
	}
}
