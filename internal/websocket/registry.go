package websocket

import (
	"sort"
	"sync"
)

// Registry tracks live connections and their room memberships
// ARCHITECTURAL DISCOVERY: Arena of connection handles indexed by connection id, room id and
// user id; membership entries are removed synchronously on unregister so no room keeps an
// orphaned reference
type Registry struct {
	mu          sync.RWMutex                   // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy fan-out lookups
	connections map[string]Client              // connectionID -> Client
	rooms       map[string]map[string]Client   // roomID -> connectionID -> Client
	users       map[string]map[string]Client   // userID -> connectionID -> Client
	joined      map[string]map[string]struct{} // connectionID -> set of roomIDs
}

// Stats is a point-in-time view of the registry used by /health
type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// NewRegistry creates a new connection registry
// FUNCTIONAL DISCOVERY: Initialize all maps to prevent nil pointer access during concurrent operations
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]Client),
		rooms:       make(map[string]map[string]Client),
		users:       make(map[string]map[string]Client),
		joined:      make(map[string]map[string]struct{}),
	}
}

// Register adds a connection; a user may hold several connections at once
func (r *Registry) Register(c Client) error {
	if c == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	r.connections[id] = c
	if _, ok := r.joined[id]; !ok {
		r.joined[id] = make(map[string]struct{})
	}

	userID := c.Principal().UserID
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]Client)
	}
	r.users[userID][id] = c
	return nil
}

// Unregister removes a connection and every membership it held, returning the rooms it left
// FUNCTIONAL DISCOVERY: Idempotent, a second call returns nil
func (r *Registry) Unregister(c Client) []string {
	if c == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	if _, ok := r.connections[id]; !ok {
		return nil
	}
	delete(r.connections, id)

	userID := c.Principal().UserID
	if conns := r.users[userID]; conns != nil {
		delete(conns, id)
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}

	left := make([]string, 0, len(r.joined[id]))
	for roomID := range r.joined[id] {
		r.removeMemberLocked(roomID, id)
		left = append(left, roomID)
	}
	delete(r.joined, id)

	sort.Strings(left)
	return left
}

// Join adds the connection to a room and reports whether it was newly added
func (r *Registry) Join(c Client, roomID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	rooms, ok := r.joined[id]
	if !ok {
		return false, ErrNotRegistered
	}
	if _, already := rooms[roomID]; already {
		return false, nil
	}
	rooms[roomID] = struct{}{}

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]Client)
	}
	r.rooms[roomID][id] = c
	return true, nil
}

// Leave removes the connection from a room and reports whether it was a member
func (r *Registry) Leave(c Client, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	rooms, ok := r.joined[id]
	if !ok {
		return false
	}
	if _, member := rooms[roomID]; !member {
		return false
	}
	delete(rooms, roomID)
	r.removeMemberLocked(roomID, id)
	return true
}

func (r *Registry) removeMemberLocked(roomID, connID string) {
	members := r.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) IsMember(c Client, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.joined[c.ID()][roomID]
	return ok
}

// RoomMembers returns a snapshot of the connections currently in a room
// TECHNICAL DISCOVERY: Snapshot under read lock lets callers send without holding the lock
func (r *Registry) RoomMembers(roomID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// UserConnections returns every live connection of a user
func (r *Registry) UserConnections(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Connections: len(r.connections),
		Users:       len(r.users),
		Rooms:       len(r.rooms),
	}
}
