package state

import (
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Transport, ipAddr string) (*Connection, error)
	// DeregisterConnection removes the connection from every room it joined
	// and from its user, reporting the identity it was bound to ("" when
	// unbound or already gone). Idempotent.
	DeregisterConnection(connID uuid.UUID) (string, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	GetAllConnections() []*Connection

	// --- User Binding ---
	// BindUser links a connection to an authenticated identity and joins the
	// user's personal room. A connection can be bound at most once.
	BindUser(connID uuid.UUID, userID string) (*User, error)
	FindUser(userID string) (*User, bool)
	GetUserConnectionCount(userID string) (int, error)
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- Room Membership ---
	JoinRoom(connID uuid.UUID, roomID string) error
	// LeaveRoom is idempotent; leaving a room never joined is not an error.
	LeaveRoom(connID uuid.UUID, roomID string)

	// --- Broadcast ---
	// Broadcast fans a message out to every connection in the room and
	// reports how many connections it was queued to. Sends happen outside
	// the registry's lock.
	Broadcast(roomID string, message []byte) int
	// BroadcastAll fans a message out to every registered connection.
	BroadcastAll(message []byte) int
}
