/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type inEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one websocket attachment. Its send channel is drained by
// writePump; a full buffer means the consumer is dead or hopelessly slow,
// and the client is dropped.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan outEvent
}

// Hub owns every live connection and the room membership index, and
// implements the emitter the game engine fans out through.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	members map[string]map[string]bool

	game  *Game
	rooms *RoomManager
}

func newHub(rooms *RoomManager) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		members: make(map[string]map[string]bool),
		rooms:   rooms,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}

	delete(h.clients, c.id)
	close(c.send)

	for _, conns := range h.members {
		delete(conns, c.id)
	}
}

func (h *Hub) joinRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.members[roomCode] == nil {
		h.members[roomCode] = make(map[string]bool)
	}
	h.members[roomCode][connID] = true
}

// closeRoom drops every connection belonging to a (deleted) room.
func (h *Hub) closeRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.members[roomCode] {
		if c, ok := h.clients[connID]; ok {
			delete(h.clients, connID)
			close(c.send)
			_ = c.conn.Close()
		}
	}
	delete(h.members, roomCode)
}

func (h *Hub) sendLocked(c *Client, event string, payload any) {
	select {
	case c.send <- outEvent{Event: event, Data: payload}:
	default:
		delete(h.clients, c.id)
		close(c.send)
		for _, conns := range h.members {
			delete(conns, c.id)
		}
	}
}

func (h *Hub) toConn(connID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[connID]; ok {
		h.sendLocked(c, event, payload)
	}
}

func (h *Hub) toRoom(roomCode, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.members[roomCode] {
		if c, ok := h.clients[connID]; ok {
			h.sendLocked(c, event, payload)
		}
	}
}

func (h *Hub) toHost(room *Room, event string, payload any) {
	h.toConn(room.HostConnID, event, payload)
}

// serveWS upgrades a connection and runs its pumps until it drops.
func serveWS(h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan outEvent, 16),
		}

		h.register(client)

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.handleDisconnect(c)
		h.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		var ev inEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}

		h.dispatch(c, ev)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// handleDisconnect is a soft event: identities survive, only the binding
// goes stale until a rejoin.
func (h *Hub) handleDisconnect(c *Client) {
	room, role, player := h.rooms.findByConnection(c.id)
	if room == nil {
		return
	}

	room.mu.Lock()
	switch role {
	case roleHost:
		room.HostConnected = false
		log.Info().Str("room", room.Code).Msg("host disconnected")
	case rolePlayer:
		player.Connected = false
		log.Info().Str("room", room.Code).Str("player", player.ID).Msg("player disconnected")
	}
	update := roomUpdate(room)
	room.mu.Unlock()

	h.toRoom(room.Code, evRoomUpdate, update)
}
