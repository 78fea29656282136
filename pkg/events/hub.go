package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/convoyhq/convoy/pkg/models"
)

// Socket is the transport a connection speaks. Production wraps
// *websocket.Conn; tests substitute an in-memory pipe.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Gatekeeper authorizes journey room joins and accepts timeline posts
// arriving over the socket. Implemented by services.JourneyService.
type Gatekeeper interface {
	VerifyJourneyMembership(ctx context.Context, userID, journeyID string) (groupID string, err error)
	PostEvent(ctx context.Context, userID, journeyID string, req models.PostRideEventRequest) (*models.RideEvent, error)
}

// Hub manages socket connections and room membership. It is the only
// process-wide mutable state in the service and is guarded by two RWMutexes:
// one for the connection registry, one for the room index.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	roomMu sync.RWMutex
	rooms  map[string]map[string]bool // room → set of connection ids

	gate         Gatekeeper
	writeTimeout time.Duration
}

// Conn is one authenticated socket connection.
//
// journeys and rooms are accessed without a lock: all reads and writes
// happen on the single goroutine that owns the connection (HandleConnection's
// read loop and its deferred cleanup).
type Conn struct {
	ID     string
	UserID string
	sock   Socket

	rooms    map[string]bool   // rooms this connection belongs to
	journeys map[string]string // joined journeyID → groupID, for leave

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. gate may be nil in tests that never join rooms.
func NewHub(gate Gatekeeper, writeTimeout time.Duration) *Hub {
	return &Hub{
		conns:        make(map[string]*Conn),
		rooms:        make(map[string]map[string]bool),
		gate:         gate,
		writeTimeout: writeTimeout,
	}
}

// SetGatekeeper installs the membership verifier. The hub and the service
// that guards it reference each other, so wiring happens in two steps; call
// this before accepting connections.
func (h *Hub) SetGatekeeper(gate Gatekeeper) {
	h.gate = gate
}

// WrapWebsocket adapts a coder/websocket connection to the Socket interface.
func WrapWebsocket(c *websocket.Conn) Socket {
	return wsSocket{c}
}

type wsSocket struct {
	conn *websocket.Conn
}

func (s wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s wsSocket) Write(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// HandleConnection owns the lifecycle of one authenticated connection.
// The identity was verified once at upgrade time; every subsequent frame
// inherits it. Blocks until the socket closes.
func (h *Hub) HandleConnection(parentCtx context.Context, sock Socket, userID string) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Conn{
		ID:       uuid.New().String(),
		UserID:   userID,
		sock:     sock,
		rooms:    make(map[string]bool),
		journeys: make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}

	h.register(c)
	defer h.unregister(c)

	// Every connection is addressable by its user from the moment it
	// exists.
	h.join(c, UserRoom(userID))

	h.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.ID,
	})

	for {
		data, err := c.sock.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid socket message", "connection_id", c.ID, "error", err)
			continue
		}

		h.handleClientMessage(ctx, c, &msg)
	}
}

func (h *Hub) handleClientMessage(ctx context.Context, c *Conn, msg *ClientMessage) {
	switch msg.Action {
	case ActionJoin:
		if msg.JourneyID == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "journey_id is required to join"})
			return
		}
		h.handleJoin(ctx, c, msg.JourneyID)

	case ActionLeave:
		if msg.JourneyID == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "journey_id is required to leave"})
			return
		}
		h.handleLeave(c, msg.JourneyID)

	case ActionPostEvent:
		if msg.JourneyID == "" || msg.Event == nil {
			h.sendJSON(c, map[string]string{"type": "error", "message": "journey_id and event are required to post"})
			return
		}
		// PostEvent persists the entry and broadcasts it to the journey
		// room through the publisher; the poster hears it there too.
		if _, err := h.gate.PostEvent(ctx, c.UserID, msg.JourneyID, *msg.Event); err != nil {
			h.sendJSON(c, map[string]string{
				"type":    "error",
				"message": "failed to post event",
			})
		}

	case ActionPing:
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// handleJoin verifies group membership before subscribing the connection to
// the group and journey rooms. The room index is never consulted for
// authorization — membership comes from the store snapshot.
func (h *Hub) handleJoin(ctx context.Context, c *Conn, journeyID string) {
	groupID, err := h.gate.VerifyJourneyMembership(ctx, c.UserID, journeyID)
	if err != nil {
		slog.Debug("Join denied", "journey_id", journeyID, "user_id", c.UserID, "error", err)
		h.sendJSON(c, map[string]string{
			"type":       "join.denied",
			"journey_id": journeyID,
		})
		return
	}

	c.journeys[journeyID] = groupID
	h.join(c, GroupRoom(groupID))
	h.join(c, JourneyRoom(journeyID))

	h.sendJSON(c, map[string]string{
		"type":       "join.confirmed",
		"journey_id": journeyID,
		"group_id":   groupID,
	})
}

// handleLeave removes the connection from the journey's rooms. The group
// room is shared between journeys of the same group, so it is only left once
// no other joined journey still needs it. The per-user room is never left.
func (h *Hub) handleLeave(c *Conn, journeyID string) {
	groupID, joined := c.journeys[journeyID]
	if !joined {
		return
	}
	delete(c.journeys, journeyID)
	h.leave(c, JourneyRoom(journeyID))
	for _, g := range c.journeys {
		if g == groupID {
			return
		}
	}
	h.leave(c, GroupRoom(groupID))
}

// Broadcast sends a marshaled payload to every connection in a room.
// Connection snapshots are taken under the locks, then released before the
// sends so a slow client cannot stall register/unregister.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.roomMu.RLock()
	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	h.roomMu.RUnlock()

	if len(ids) == 0 {
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.sendRaw(c, payload); err != nil {
			slog.Warn("Failed to send to socket client",
				"connection_id", c.ID, "room", room, "error", err)
		}
	}
}

// Emit marshals v and broadcasts it to room. Marshal failures are logged and
// dropped; fan-out is never allowed to fail a request.
func (h *Hub) Emit(room string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal broadcast payload", "room", room, "error", err)
		return
	}
	h.Broadcast(room, data)
}

// ActiveConnections returns the number of live connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// roomSize is used by tests to poll membership instead of sleeping.
func (h *Hub) roomSize(room string) int {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Conn) {
	c.cancel()

	h.roomMu.Lock()
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.roomMu.Unlock()

	h.mu.Lock()
	delete(h.conns, c.ID)
	h.mu.Unlock()
}

func (h *Hub) join(c *Conn, room string) {
	h.roomMu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][c.ID] = true
	h.roomMu.Unlock()

	c.rooms[room] = true
}

func (h *Hub) leave(c *Conn, room string) {
	h.roomMu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.roomMu.Unlock()

	delete(c.rooms, room)
}

func (h *Hub) sendJSON(c *Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal socket message", "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send socket message", "connection_id", c.ID, "error", err)
	}
}

func (h *Hub) sendRaw(c *Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	return c.sock.Write(ctx, data)
}
