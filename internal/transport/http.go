package transport

import (
	"io"
	"log"
	"net/http"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
)

// HandleHTTP serves one table request carried in the query string of r.
func HandleHTTP(h Handler, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	resp := h.Handle(r.Form)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, resp.Content); err != nil {
		log.Printf("Error writing %s response: %v", resp.Type, err)
	}
}

// WebSocketPath is where HandleConnections is mounted by NewMux.
const WebSocketPath = "/ws"

// NewMux routes the table endpoint and the WebSocket endpoint to h.
func NewMux(h Handler, sessions *Sessions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.RequestPathPrefix, func(w http.ResponseWriter, r *http.Request) {
		HandleHTTP(h, w, r)
	})
	mux.HandleFunc(WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		HandleConnections(h, sessions, w, r)
	})
	return mux
}
