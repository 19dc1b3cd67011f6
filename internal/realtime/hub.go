package realtime

import "sync"

// Hub indexes live connections by user and by the space they are viewing.
// A connection views at most one space at a time.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	viewing map[string]string           // conn id -> space id
	rooms   map[string]map[string]*Conn // space id -> conn id -> conn
}

func NewHub() *Hub {
	return &Hub{
		conns:   map[string]*Conn{},
		viewing: map[string]string{},
		rooms:   map[string]map[string]*Conn{},
	}
}

func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
}

func (h *Hub) Unregister(conn *Conn) {
	h.mu.Lock()
	h.leaveLocked(conn.ID)
	delete(h.conns, conn.ID)
	h.mu.Unlock()
}

// View moves conn into spaceID's room. An empty spaceID only leaves.
func (h *Hub) View(conn *Conn, spaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	h.leaveLocked(conn.ID)
	if spaceID == "" {
		return
	}
	room := h.rooms[spaceID]
	if room == nil {
		room = map[string]*Conn{}
		h.rooms[spaceID] = room
	}
	room[conn.ID] = conn
	h.viewing[conn.ID] = spaceID
}

func (h *Hub) Viewing(conn *Conn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewing[conn.ID]
}

func (h *Hub) leaveLocked(connID string) {
	spaceID, ok := h.viewing[connID]
	if !ok {
		return
	}
	delete(h.viewing, connID)
	if room := h.rooms[spaceID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, spaceID)
		}
	}
}

func (h *Hub) InSpace(spaceID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.rooms[spaceID]))
	for _, conn := range h.rooms[spaceID] {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) OfUser(userID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Conn
	for _, conn := range h.conns {
		if conn.UserID == userID {
			out = append(out, conn)
		}
	}
	return out
}

// Spaces lists the spaces with at least one viewer.
func (h *Hub) Spaces() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms))
	for spaceID := range h.rooms {
		out = append(out, spaceID)
	}
	return out
}

// Close closes every connection and empties the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = map[string]*Conn{}
	h.viewing = map[string]string{}
	h.rooms = map[string]map[string]*Conn{}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "server shutdown")
	}
}
