package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the sending side of a live connection as the registry sees
// it. Satisfied by *transport.Connection.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the registry's view of a single transport-layer connection.
// UserID is assigned exactly once, at authentication, and never changes.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport
	User      *User // nil until bound
	Rooms     map[string]struct{}
	CreatedAt time.Time
}

// User aggregates all live connections authenticated as one identity.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection
}

// Room is a broadcast target. Personal rooms are keyed by a user identity,
// group rooms by a group identity; the registry does not distinguish them.
type Room struct {
	ID    string
	Conns map[uuid.UUID]*Connection
}
