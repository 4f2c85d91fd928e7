package server

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub fans out session events to websocket subscribers. A caregiver dashboard
// or the voice frontend subscribes to a session and receives every completed
// turn, including turns submitted from another device.
//
// The run loop is the sole owner of the subscriber map and of every client
// send channel: registration, removal, and delivery all happen on that one
// goroutine, so a publisher never races a close.
type Hub struct {
	clients map[string][]*wsClient

	register   chan *wsClient
	unregister chan *wsClient
	events     chan sessionEvent
}

type sessionEvent struct {
	sessionID string
	data      []byte
}

type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string][]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		events:     make(chan sessionEvent, 16),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.sessionID] = append(h.clients[client.sessionID], client)
			log.Debug().Str("session_id", client.sessionID).Msg("ws client registered")

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.events:
			h.deliver(event)
		}
	}
}

// remove is a no-op for clients the deliver path already dropped.
func (h *Hub) remove(client *wsClient) {
	clients := h.clients[client.sessionID]
	for i, c := range clients {
		if c == client {
			h.clients[client.sessionID] = append(clients[:i], clients[i+1:]...)
			close(c.send)
			break
		}
	}
	if len(h.clients[client.sessionID]) == 0 {
		delete(h.clients, client.sessionID)
	}
}

// deliver writes to every subscriber's buffer. Slow subscribers are dropped
// rather than allowed to back up the turn path.
func (h *Hub) deliver(event sessionEvent) {
	clients := h.clients[event.sessionID]
	kept := clients[:0]
	for _, client := range clients {
		select {
		case client.send <- event.data:
			kept = append(kept, client)
		default:
			close(client.send)
			log.Debug().Str("session_id", event.sessionID).Msg("slow ws client dropped")
		}
	}
	if len(kept) == 0 {
		delete(h.clients, event.sessionID)
		return
	}
	h.clients[event.sessionID] = kept
}

// Publish hands an event to the run loop for delivery to the session's
// subscribers.
func (h *Hub) Publish(sessionID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("ws event marshal failed")
		return
	}
	h.events <- sessionEvent{sessionID: sessionID, data: data}
}

// serveWs attaches a connection to the hub and pumps until it drops.
func serveWs(hub *Hub, conn *websocket.Conn, sessionID string) {
	client := &wsClient{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
	}
	hub.register <- client

	go client.writePump()
	client.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("session_id", c.sessionID).Msg("ws read closed")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
