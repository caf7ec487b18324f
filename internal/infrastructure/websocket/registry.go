package websocket

import (
	"sync"
)

// Registry maps users to their live connections and rooms to their
// subscribers. A connection is present only between a successful handshake
// and its disconnect.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client
	rooms map[string]map[string]*Client
	// memberships lets Remove drop a connection from its rooms without
	// scanning every room.
	memberships map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users:       make(map[string]map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Add registers c under c.UserID.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID]
	if !ok {
		conns = make(map[string]*Client)
		r.users[c.UserID] = conns
	}
	conns[c.ID] = c
}

// Remove drops c from its user's set and from every room it joined. It
// reports whether c was registered.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID]
	if !ok {
		return false
	}
	if _, ok := conns[c.ID]; !ok {
		return false
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.users, c.UserID)
	}

	for roomID := range r.memberships[c.ID] {
		r.leaveLocked(roomID, c)
	}
	delete(r.memberships, c.ID)
	return true
}

// Has reports whether the connection id is registered.
func (r *Registry) Has(userID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID][connID]
	return ok
}

// Connections returns a snapshot of userID's live connections.
func (r *Registry) Connections(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.users[userID])
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, conns := range r.users {
		out = append(out, snapshot(conns)...)
	}
	return out
}

// UserCount is the number of users with at least one live connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Join subscribes c to roomID. It reports false if c already was a member.
func (r *Registry) Join(roomID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[roomID] = members
	}
	if _, ok := members[c.ID]; ok {
		return false
	}
	members[c.ID] = c

	joined, ok := r.memberships[c.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[c.ID] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave unsubscribes c from roomID. It reports false if c was not a member.
func (r *Registry) Leave(roomID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID][c.ID]; !ok {
		return false
	}
	r.leaveLocked(roomID, c)
	if joined := r.memberships[c.ID]; joined != nil {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.memberships, c.ID)
		}
	}
	return true
}

func (r *Registry) leaveLocked(roomID string, c *Client) {
	members := r.rooms[roomID]
	delete(members, c.ID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Subscribers returns a snapshot of roomID's connections.
func (r *Registry) Subscribers(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.rooms[roomID])
}

func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func snapshot(set map[string]*Client) []*Client {
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
