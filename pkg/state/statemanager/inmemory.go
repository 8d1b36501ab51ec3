package statemanager

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager holds all live connection, user and room state. A single
// RWMutex guards the three maps; room membership is only ever mutated
// through calls scoped to one connection, so contention is low.
type InMemoryManager struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*state.Connection
	users map[string]*state.User
	rooms map[string]*state.Room

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[string]*state.User),
		rooms:  make(map[string]*state.Room),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func (m *InMemoryManager) RegisterConnection(t state.Transport, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	conn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		Rooms:     make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	m.conns[connID] = conn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return conn, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// already deregistered
		return "", nil
	}
	delete(m.conns, connID)

	for roomID := range conn.Rooms {
		m.leaveRoomLocked(conn, roomID)
	}

	var userID string
	if conn.User != nil {
		user := conn.User
		userID = user.ID
		delete(user.Connections, connID)
		if len(user.Connections) == 0 {
			delete(m.users, user.ID)
		}
		m.logger.Debug("Detached connection from user", slog.String("connID", connID.String()), slog.String("userID", user.ID))
	}
	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return userID, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) GetAllConnections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	return conns
}

// --- User Binding ---

func (m *InMemoryManager) BindUser(connID uuid.UUID, userID string) (*state.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, errors.New("cannot bind user to unknown connection")
	}
	if conn.User != nil {
		return nil, errors.New("connection is already bound to a user")
	}

	user, exists := m.users[userID]
	if !exists {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
		}
		m.users[userID] = user
		m.logger.Debug("Created user session", slog.String("userID", userID))
	}

	conn.User = user
	user.Connections[connID] = conn

	// Every connection of a user sits in the user's personal room, which is
	// keyed by the identity itself.
	m.joinRoomLocked(conn, userID)

	m.logger.Debug("Bound connection to user", slog.String("connID", connID.String()), slog.String("userID", userID))
	return user, nil
}

func (m *InMemoryManager) FindUser(userID string) (*state.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	return user, ok
}

func (m *InMemoryManager) GetUserConnectionCount(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil // User has no live connections.
	}
	return len(user.Connections), nil
}

func (m *InMemoryManager) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}

	var oldest *state.Connection
	for _, conn := range user.Connections {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest, true
}

// --- Room Membership ---

func (m *InMemoryManager) JoinRoom(connID uuid.UUID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return errors.New("cannot join room: connection not found")
	}
	m.joinRoomLocked(conn, roomID)
	return nil
}

func (m *InMemoryManager) joinRoomLocked(conn *state.Connection, roomID string) {
	room, exists := m.rooms[roomID]
	if !exists {
		room = &state.Room{
			ID:    roomID,
			Conns: make(map[uuid.UUID]*state.Connection),
		}
		m.rooms[roomID] = room
	}
	room.Conns[conn.ID] = conn
	conn.Rooms[roomID] = struct{}{}
	m.logger.Debug("Connection joined room", slog.String("connID", conn.ID.String()), slog.String("roomID", roomID))
}

func (m *InMemoryManager) LeaveRoom(connID uuid.UUID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return
	}
	m.leaveRoomLocked(conn, roomID)
}

func (m *InMemoryManager) leaveRoomLocked(conn *state.Connection, roomID string) {
	delete(conn.Rooms, roomID)

	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(room.Conns, conn.ID)

	// For memory hygiene, remove the room once empty.
	if len(room.Conns) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
	}
}

// --- Broadcast ---

// Broadcast snapshots the room's transports under the read lock and sends
// after releasing it, so a slow consumer never pins the manager's mutex
// against registrations and teardowns on other connections.
func (m *InMemoryManager) Broadcast(roomID string, message []byte) int {
	m.mu.RLock()
	var targets []state.Transport
	if room, ok := m.rooms[roomID]; ok {
		targets = make([]state.Transport, 0, len(room.Conns))
		for _, conn := range room.Conns {
			targets = append(targets, conn.Transport)
		}
	}
	m.mu.RUnlock()

	for _, t := range targets {
		t.Send(message)
	}
	return len(targets)
}

func (m *InMemoryManager) BroadcastAll(message []byte) int {
	m.mu.RLock()
	targets := make([]state.Transport, 0, len(m.conns))
	for _, conn := range m.conns {
		targets = append(targets, conn.Transport)
	}
	m.mu.RUnlock()

	for _, t := range targets {
		t.Send(message)
	}
	return len(targets)
}
