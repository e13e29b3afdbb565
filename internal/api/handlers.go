package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/gorilla/websocket"
)

// RecordStore gives access to recently recorded stream events.
type RecordStore interface {
	GetRecentRecords(limit int) []httpstream.Record
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	hub   *Hub
	store RecordStore
}

// NewHandler creates a new API handler.
func NewHandler(hub *Hub, store RecordStore) *Handler {
	return &Handler{
		hub:   hub,
		store: store,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, any origin may watch
	},
}

// HandleWebSocket streams records to the client as they are written.
// With ?replay=N the N most recent records are sent first.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	replay := parseLimit(r.URL.Query().Get("replay"), 0)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	client := NewClient(h.hub, conn)
	if replay > 0 {
	queue:
		for _, rec := range h.store.GetRecentRecords(replay) {
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			select {
			case client.send <- data:
			default:
				break queue
			}
		}
	}
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	// Start pumps
	go client.WritePump()
	client.ReadPump()
}

// HandleGetRecords handles GET /api/records and returns recent records,
// oldest first.
func (h *Handler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 100)
	records := h.store.GetRecentRecords(limit)
	if records == nil {
		records = []httpstream.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(records)
}

// HandleCORS handles CORS preflight requests.
func (h *Handler) HandleCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleWebSocket)

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			h.HandleCORS(w, r)
			return
		}
		h.HandleGetRecords(w, r)
	})
}

// parseLimit accepts 1..1000 and falls back to def otherwise.
func parseLimit(s string, def int) int {
	if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
		return l
	}
	return def
}
