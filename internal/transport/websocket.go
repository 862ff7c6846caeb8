package transport

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleConnections upgrades r and serves table requests over the socket until it closes.
func HandleConnections(h Handler, sessions *Sessions, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Error upgrading connection:", err)
		return
	}
	s := newSession(ws, h, sessions)
	sessions.add(s)
	go s.writePump()
	go s.readPump()
}
