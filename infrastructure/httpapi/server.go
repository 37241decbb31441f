// Package httpapi exposes the room operations over HTTP: room creation,
// history reads, search, and the WebSocket upgrade into a live session.
package httpapi

import (
	"chat-rooms/domain"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/protocol"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

type Server struct {
	log                  *slog.Logger
	directory            *runtime.Directory
	search               *repositories.SearchIndex
	upgrader             websocket.Upgrader
	recentLimit          int
	connectionBufferSize int
}

func NewServer(log *slog.Logger, directory *runtime.Directory,
	search *repositories.SearchIndex, recentLimit, connectionBufferSize int) *Server {
	return &Server{
		log:       log,
		directory: directory,
		search:    search,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Identity is an opaque caller-supplied id; origins are not
			// restricted, mirroring the permissive CORS surface below.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		recentLimit:          recentLimit,
		connectionBufferSize: connectionBufferSize,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /room", s.handleCreateRoom)
	mux.HandleFunc("GET /room/{id}/recent", s.handleRecent)
	mux.HandleFunc("GET /room/{id}/search", s.handleSearch)
	mux.HandleFunc("OPTIONS /room/{id}", s.handlePreflight)
	mux.HandleFunc("GET /room/{id}", s.handleUpgrade)
	return mux
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	id := s.directory.CreateRoom()
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(id)})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("id"))
	posts, err := s.directory.FetchRecent(room, s.recentLimit)
	if err != nil {
		s.log.Error("Failed to fetch recent posts", "room", string(room), "error", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": wirePosts(posts)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("id"))
	terms := r.URL.Query().Get("q")
	if terms == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	posts, err := s.search.Search(r.Context(), room, terms, s.recentLimit)
	if err != nil {
		s.log.Error("Search failed", "room", string(room), "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": wirePosts(posts)})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Max-Age", "86400")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

// handleUpgrade turns the request into a live session for the room. The
// pumps run on the caller's goroutines; when the read side ends, the
// session is detached and closed.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") != "websocket" {
		http.Error(w, "Expected Upgrade: websocket", http.StatusUpgradeRequired)
		return
	}
	room := domain.RoomID(r.PathValue("id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", "room", string(room), "error", err)
		return
	}

	session := ws.NewConnection(conn, s.connectionBufferSize, s.log)
	if err := s.directory.Attach(r.Context(), room, session); err != nil {
		session.Close()
		return
	}

	go session.WritePump()
	session.ReadPump(func(payload []byte) {
		// Forward with a background context: the request context ends
		// with the handler, not with the session.
		if err := s.directory.Forward(context.Background(), room, session, payload); err != nil {
			s.log.Debug("Dropped inbound payload", "room", string(room), "error", err)
		}
	})

	s.directory.Detach(room, session)
	session.Close()
}

func wirePosts(posts []domain.Post) []protocol.WirePost {
	wire := protocol.ToWirePosts(posts)
	if wire == nil {
		wire = []protocol.WirePost{}
	}
	return wire
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
