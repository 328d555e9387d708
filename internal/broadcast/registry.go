package broadcast

import (
	"errors"
	"sync"
	"time"

	"PatternFlow/internal/domain/models"
)

// ErrRoomLimit is returned by Join when the registry is at its room cap.
var ErrRoomLimit = errors.New("registry: room limit reached")

// Conn is a connection handle as the broadcaster sees it. Deliver must not
// block: a full outbound queue or closed transport returns an error, which
// the broadcaster treats as grounds for purging the connection.
type Conn interface {
	ID() string
	Deliver(topic string, events []*models.PatternEvent) error
	Close() error
}

// tombstoneTTL is how long a purged connection ID keeps blocking re-joins.
// Connection IDs are random and never reused; the tombstone only has to
// outlive a join racing with the purge.
const tombstoneTTL = time.Minute

// Registry is the topic → connection membership map and its inverse. It is
// the only structure mutated concurrently by both the flush loop (reads) and
// client goroutines (joins/leaves), so every read path snapshots under RLock
// and no lock is held across delivery.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]map[string]Conn
	topicsByConn map[string]map[string]struct{}
	conns        map[string]Conn
	purged       map[string]time.Time
	maxRooms     int
}

// NewRegistry creates a registry. maxRooms <= 0 means unbounded.
func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		rooms:        make(map[string]map[string]Conn),
		topicsByConn: make(map[string]map[string]struct{}),
		conns:        make(map[string]Conn),
		purged:       make(map[string]time.Time),
		maxRooms:     maxRooms,
	}
}

// Join adds the connection to a topic room. Joining twice is a no-op, as is
// joining after the connection was purged (purge wins the race).
func (r *Registry) Join(conn Conn, topic string) error {
	if conn == nil || topic == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dead := r.purged[conn.ID()]; dead {
		return nil
	}
	room, ok := r.rooms[topic]
	if !ok {
		if r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
			return ErrRoomLimit
		}
		room = make(map[string]Conn)
		r.rooms[topic] = room
	}
	room[conn.ID()] = conn
	if _, ok := r.topicsByConn[conn.ID()]; !ok {
		r.topicsByConn[conn.ID()] = make(map[string]struct{})
	}
	r.topicsByConn[conn.ID()][topic] = struct{}{}
	r.conns[conn.ID()] = conn
	return nil
}

// Leave removes the connection from one topic. Empty rooms are deleted so
// the room count stays bounded by live membership.
func (r *Registry) Leave(connID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, topic)
}

func (r *Registry) leaveLocked(connID, topic string) {
	if room, ok := r.rooms[topic]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, topic)
		}
	}
	if topics, ok := r.topicsByConn[connID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.topicsByConn, connID)
			delete(r.conns, connID)
		}
	}
}

// MembersOf returns a stable snapshot of the room. The broadcaster iterates
// it without holding the registry lock, so concurrent joins and leaves
// during a flush are safe; they simply take effect from the next window.
func (r *Registry) MembersOf(topic string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[topic]
	if len(room) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// Purge removes the connection from every room and tombstones its ID so a
// racing Join cannot resurrect it. Terminal for the connection.
func (r *Registry) Purge(connID string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.topicsByConn[connID] {
		if room, ok := r.rooms[topic]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(r.rooms, topic)
			}
		}
	}
	delete(r.topicsByConn, connID)
	delete(r.conns, connID)

	r.purged[connID] = now
	for id, t := range r.purged {
		if now.Sub(t) > tombstoneTTL {
			delete(r.purged, id)
		}
	}
}

// Topics returns the topics a connection is currently joined to.
func (r *Registry) Topics(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := r.topicsByConn[connID]
	out := make([]string, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	return out
}

// Rooms returns the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections returns the number of connections joined to at least one room.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
