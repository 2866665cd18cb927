package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers conn as a viewer of subject and blocks until the
// viewer leaves. An optional initial message is queued first.
func ServeWs(hub *Hub, c *websocket.Conn, subject string, initial []byte) {
	client := newClient(hub, c, subject)
	if initial != nil {
		client.Send <- initial
	}
	hub.register <- client

	go client.writePump()
	client.readPump()
}
