package ws

import "sync"

// UserRoom names the per-user broadcast room. Every live connection of a
// user joins this room on setup, which lets callers address a user id
// directly without enumerating connections.
func UserRoom(userID string) string {
	return "user_" + userID
}

// Hub tracks every live connection and the named rooms they belong to, and
// provides the broadcast primitives the gateway and delivery coordinator
// are built on.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
	rooms map[string]map[*Conn]struct{}
	// joined mirrors rooms per connection so Remove is O(rooms joined).
	joined map[*Conn]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		rooms:  make(map[string]map[*Conn]struct{}),
		joined: make(map[*Conn]map[string]struct{}),
	}
}

// Add registers a connection with the hub. Called once per transport connect.
func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Remove drops the connection from the hub and from every room it joined.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c)
	for room := range h.joined[c] {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.joined, c)
}

// Join adds the connection to the named room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.joined[c] == nil {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][room] = struct{}{}
}

// Leave removes the connection from the named room only.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.joined[c]; ok {
		delete(joined, room)
	}
}

// Emit sends the event to every connection in the room. An empty or unknown
// room is a silent no-op.
func (h *Hub) Emit(room, event string, data any) {
	h.EmitExcept(room, nil, event, data)
}

// EmitExcept sends the event to every connection in the room other than the
// excluded one.
func (h *Hub) EmitExcept(room string, except *Conn, event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		c.Send(event, data)
	}
}

// EmitAll sends the event to every live connection.
func (h *Hub) EmitAll(event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		c.Send(event, data)
	}
}

// RoomSize returns the number of connections currently in the room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
