// Package httpapi exposes the relay's HTTP surface: the WebSocket upgrade
// endpoint, a health probe and the room allocation/listing API.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/1ureka/1ureka.net.chat/internal/registry"
	"github.com/1ureka/1ureka.net.chat/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// The relay trusts room ids, not origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server wires the hub into an HTTP router.
type Server struct {
	hub *relay.Hub
	log zerolog.Logger
}

// NewServer creates the HTTP facade over a running hub.
func NewServer(hub *relay.Hub, log zerolog.Logger) *Server {
	return &Server{hub: hub, log: log}
}

// Router builds the chi router for the relay server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/rooms", s.handleListRooms)
	r.Post("/api/rooms", s.handleCreateRoom)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleCreateRoom mints a fresh room id. The room itself materializes on
// the first join, so no empty room is ever observable in the registry.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"roomId": uuid.NewString()})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	infos := s.hub.Snapshot()
	if infos == nil {
		infos = []registry.RoomInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	id := s.hub.Attach(ws)
	s.log.Info().Str("conn_id", id).Str("remote", r.RemoteAddr).Msg("websocket connected")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
