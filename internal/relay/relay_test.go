package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state/statemanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// --- fakes ---

type fakeTransport struct {
	id uuid.UUID

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (f *fakeTransport) ID() uuid.UUID { return f.id }

func (f *fakeTransport) Send(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
}

func (f *fakeTransport) Close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type sentEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (f *fakeTransport) events(t *testing.T) []sentEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]sentEvent, 0, len(f.sent))
	for _, raw := range f.sent {
		var ev sentEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		out = append(out, ev)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type fakeUserStore struct {
	mu        sync.Mutex
	users     map[string]*store.User
	updateErr error
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeUserStore) UpdateStatus(_ context.Context, id string, status store.Status) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	user.Status = status
	return user, nil
}

type fakeGroupStore struct {
	groups map[string]*store.Group
}

func (s *fakeGroupStore) FindByID(_ context.Context, id string) (*store.Group, error) {
	return s.groups[id], nil
}

type fakeMessageStore struct {
	mu      sync.Mutex
	created []*store.Message
}

func (s *fakeMessageStore) Create(_ context.Context, msg *store.Message) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.created = append(s.created, msg)
	return msg, nil
}

func (s *fakeMessageStore) FindByIDWithSender(_ context.Context, id string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.created {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, nil
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// --- rig ---

type testRig struct {
	relay    *Relay
	manager  state.Manager
	users    *fakeUserStore
	groups   *fakeGroupStore
	messages *fakeMessageStore
}

func newTestRig() *testRig {
	logger := newTestLogger()
	manager := statemanager.NewInMemoryManager(logger)
	users := &fakeUserStore{users: make(map[string]*store.User)}
	groups := &fakeGroupStore{groups: make(map[string]*store.Group)}
	messages := &fakeMessageStore{}
	return &testRig{
		relay:    New(logger, manager, users, groups, messages),
		manager:  manager,
		users:    users,
		groups:   groups,
		messages: messages,
	}
}

func (rig *testRig) addUser(id, name, publicKey string) *store.User {
	user := &store.User{ID: id, Name: name, PublicKey: publicKey, Status: store.StatusOffline}
	rig.users.users[id] = user
	return user
}

// connect registers and binds a connection without the presence side
// effects, so individual tests start from a quiet transport.
func (rig *testRig) connect(t *testing.T, userID string) (*state.Connection, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	conn, err := rig.manager.RegisterConnection(ft, "127.0.0.1")
	require.NoError(t, err)
	_, err = rig.manager.BindUser(conn.ID, userID)
	require.NoError(t, err)
	return conn, ft
}

func (rig *testRig) send(conn *state.Connection, event string, payload string) {
	rig.relay.dispatch(context.Background(), conn, &ClientEvent{
		Event:   event,
		Payload: json.RawMessage(payload),
	})
}

func requireSingleError(t *testing.T, ft *fakeTransport, wantMessage string) {
	t.Helper()
	events := ft.events(t)
	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Event)
	var p errorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &p))
	assert.Equal(t, wantMessage, p.Message)
}

// --- session & presence ---

func TestSessionEstablishedBindsAndAnnounces(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")

	ft := newFakeTransport()
	conn, err := rig.manager.RegisterConnection(ft, "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, rig.relay.SessionEstablished(context.Background(), conn.ID, "alice"))

	events := ft.events(t)
	require.Len(t, events, 2)

	// Identity notification arrives before anything else.
	require.Equal(t, EventUserID, events[0].Event)
	var id string
	require.NoError(t, json.Unmarshal(events[0].Payload, &id))
	assert.Equal(t, "alice", id)

	require.Equal(t, EventStatusUpdate, events[1].Event)
	var status statusUpdatePayload
	require.NoError(t, json.Unmarshal(events[1].Payload, &status))
	assert.Equal(t, "alice", status.UserID)
	assert.Equal(t, store.StatusOnline, status.Status)

	assert.Equal(t, store.StatusOnline, rig.users.users["alice"].Status)

	// Bound exactly once and sitting in the personal room.
	got, ok := rig.manager.GetConnection(conn.ID)
	require.True(t, ok)
	require.NotNil(t, got.User)
	assert.Equal(t, "alice", got.User.ID)
	assert.Equal(t, 1, rig.manager.Broadcast("alice", []byte(`{}`)))
}

func TestSessionEstablishedUnknownUserSkipsPresence(t *testing.T) {
	rig := newTestRig()

	ft := newFakeTransport()
	conn, err := rig.manager.RegisterConnection(ft, "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, rig.relay.SessionEstablished(context.Background(), conn.ID, "ghost"))

	events := ft.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserID, events[0].Event)
}

func TestConnectionClosedBroadcastsOffline(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	rig.addUser("bob", "Bob", "")

	aliceConn, _ := rig.connect(t, "alice")
	_, bobFT := rig.connect(t, "bob")

	rig.relay.ConnectionClosed(aliceConn.ID)

	events := bobFT.events(t)
	require.Len(t, events, 1)
	require.Equal(t, EventStatusUpdate, events[0].Event)
	var status statusUpdatePayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &status))
	assert.Equal(t, "alice", status.UserID)
	assert.Equal(t, store.StatusOffline, status.Status)
	assert.Equal(t, store.StatusOffline, rig.users.users["alice"].Status)

	// Connection is gone from the registry.
	_, ok := rig.manager.GetConnection(aliceConn.ID)
	assert.False(t, ok)
}

func TestPresenceStoreFailureIsSwallowed(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	rig.users.updateErr = assert.AnError

	aliceConn, _ := rig.connect(t, "alice")
	_, bobFT := rig.connect(t, "bob")

	rig.relay.ConnectionClosed(aliceConn.ID)
	assert.Empty(t, bobFT.events(t))
}

// --- dispatch boundary ---

func TestDispatchUnknownEvent(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	conn, ft := rig.connect(t, "alice")

	rig.send(conn, "selfDestruct", `{}`)
	requireSingleError(t, ft, "unknown event: selfDestruct")
}

func TestHandleMessageMalformedFrame(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	conn, ft := rig.connect(t, "alice")

	rig.relay.HandleMessage(context.Background(), conn.ID, []byte("not json"))
	requireSingleError(t, ft, "malformed event frame")
}

// --- group room membership ---

func groupFixture(creator string, members map[string]bool) *store.Group {
	g := &store.Group{ID: "g1", Name: "Team", CreatorID: creator}
	for userID, canSend := range members {
		g.Members = append(g.Members, &store.GroupMember{GroupID: "g1", UserID: userID, CanSendMessages: canSend})
	}
	return g
}

func TestJoinGroupSuccess(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	rig.groups.groups["g1"] = groupFixture("alice", map[string]bool{"alice": true})
	conn, ft := rig.connect(t, "alice")

	rig.send(conn, EventJoinGroup, `{"groupId":"g1"}`)

	assert.Empty(t, ft.events(t))
	assert.Equal(t, 1, rig.manager.Broadcast("g1", []byte(`{}`)))
}

func TestJoinGroupNotFound(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	conn, ft := rig.connect(t, "alice")

	rig.send(conn, EventJoinGroup, `{"groupId":"missing"}`)
	requireSingleError(t, ft, "Group not found")
}

func TestJoinGroupNotAMember(t *testing.T) {
	rig := newTestRig()
	rig.addUser("mallory", "Mallory", "")
	rig.groups.groups["g1"] = groupFixture("alice", map[string]bool{"alice": true})
	conn, ft := rig.connect(t, "mallory")

	rig.send(conn, EventJoinGroup, `{"groupId":"g1"}`)
	requireSingleError(t, ft, "User not a member of this group")
	assert.Equal(t, 0, rig.manager.Broadcast("g1", []byte(`{}`)))
}

func TestLeaveGroupIsIdempotent(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	conn, ft := rig.connect(t, "alice")

	// Leaving a room never joined produces no error and no events.
	rig.send(conn, EventLeaveGroup, `{"groupId":"never-joined"}`)
	rig.send(conn, EventLeaveGroup, `{"groupId":"never-joined"}`)
	assert.Empty(t, ft.events(t))
}

func TestLeaveGroupAfterJoin(t *testing.T) {
	rig := newTestRig()
	rig.addUser("alice", "Alice", "")
	rig.groups.groups["g1"] = groupFixture("alice", map[string]bool{"alice": true})
	conn, ft := rig.connect(t, "alice")

	rig.send(conn, EventJoinGroup, `{"groupId":"g1"}`)
	require.Equal(t, 1, rig.manager.Broadcast("g1", []byte(`{}`)))
	ft.reset()

	rig.send(conn, EventLeaveGroup, `{"groupId":"g1"}`)
	assert.Empty(t, ft.events(t))
	assert.Equal(t, 0, rig.manager.Broadcast("g1", []byte(`{}`)))
}
