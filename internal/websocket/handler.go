package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection with the hub and runs its pumps until
// the connection ends. Blocks in the caller's goroutine (the fiber
// websocket handler).
func ServeWs(hub *Hub, c *websocket.Conn, sessionId string, pingPeriod time.Duration,
	onMessage func(data []byte), onPong func(), onClose func()) {
	client := &Client{
		Hub:        hub,
		Conn:       c,
		SessionId:  sessionId,
		Send:       make(chan []byte, 256),
		PingPeriod: pingPeriod,
		OnMessage:  onMessage,
		OnPong:     onPong,
		OnClose:    onClose,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
