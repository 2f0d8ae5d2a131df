package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection roles. Every connection starts as a submitter; a successful
// identify message with the console secret promotes it to moderator.
const (
	RoleSubmitter = "submitter"
	RoleModerator = "moderator"
)

// Connection represents a single WebSocket client connection with its role
// and a write mutex for serializing outbound frames.
type Connection struct {
	ID        string    // session ID (UUID), doubles as the submitter identity
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established
	LastPing  time.Time // last frame received from the client

	mu      sync.Mutex // guards role and actorID
	role    string
	actorID string

	writeMu sync.Mutex // serializes writes to this connection
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// SetModerator promotes the connection to the moderator role acting as
// actorID.
func (c *Connection) SetModerator(actorID string) {
	c.mu.Lock()
	c.role = RoleModerator
	c.actorID = actorID
	c.mu.Unlock()
}

// IsModerator reports whether the connection has been identified as a
// moderator console.
func (c *Connection) IsModerator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role == RoleModerator
}

// ActorID returns the moderator id for identified consoles, or the session
// id for anonymous submitters.
func (c *Connection) ActorID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == RoleModerator {
		return c.actorID
	}
	return c.ID
}

// ConnectionManager is a thread-safe registry mapping session IDs to their
// Connection objects.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection // session_id -> Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by session ID and closes the underlying
// network connection. Returns true if the connection was found and removed,
// false if it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given session ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}

// Moderators returns a snapshot of all identified moderator connections.
func (cm *ConnectionManager) Moderators() []*Connection {
	var mods []*Connection
	for _, conn := range cm.All() {
		if conn.IsModerator() {
			mods = append(mods, conn)
		}
	}
	return mods
}

// BroadcastModerators sends a message to every identified moderator console.
// Errors on individual connections are ignored; failed connections are
// cleaned up when their read loop exits.
func (cm *ConnectionManager) BroadcastModerators(msg []byte) {
	for _, conn := range cm.Moderators() {
		_ = conn.WriteMessage(msg)
	}
}
