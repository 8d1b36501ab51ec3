package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
	"github.com/google/uuid"
)

// Handler processes one inbound event. A returned error never tears the
// connection down; the dispatcher converts it into a single outbound error
// event to the originating connection.
type Handler func(ctx context.Context, conn *state.Connection, payload json.RawMessage) error

// Relay owns the event routing for live connections: session establishment,
// room membership, message fan-out, call signaling and presence.
type Relay struct {
	logger   *slog.Logger
	state    state.Manager
	users    store.UserStore
	groups   store.GroupStore
	messages store.MessageStore
	calls    *callTracker

	handlers map[string]Handler
}

func New(logger *slog.Logger, st state.Manager, users store.UserStore, groups store.GroupStore, messages store.MessageStore) *Relay {
	r := &Relay{
		logger:   logger.With(slog.String("component", "relay")),
		state:    st,
		users:    users,
		groups:   groups,
		messages: messages,
	}
	r.calls = newCallTracker(r.logger)
	r.handlers = map[string]Handler{
		EventJoinGroup:        r.handleJoinGroup,
		EventLeaveGroup:       r.handleLeaveGroup,
		EventChatMessage:      r.handleChatMessage,
		EventCallRequest:      r.handleCallRequest,
		EventCallAccepted:     r.handleCallAccepted,
		EventCallRejected:     r.handleCallRejected,
		EventCallEnded:        r.handleCallEnded,
		EventGroupCallStarted: r.handleGroupCallStarted,
		EventEndGroupCall:     r.handleEndGroupCall,
	}
	return r
}

// SessionEstablished binds the authenticated identity to the connection,
// joins the personal room, notifies the client of its resolved identity and
// marks the user online.
func (r *Relay) SessionEstablished(ctx context.Context, connID uuid.UUID, userID string) error {
	if _, err := r.state.BindUser(connID, userID); err != nil {
		return err
	}
	conn, ok := r.state.GetConnection(connID)
	if !ok {
		return errors.Internal("connection vanished during session setup")
	}

	// The userId event must reach the client before anything else,
	// including this user's own Online broadcast.
	frame, err := marshalEvent(EventUserID, userID)
	if err != nil {
		return err
	}
	conn.Transport.Send(frame)

	r.setPresence(ctx, userID, store.StatusOnline)
	r.logger.Info("Session established", slog.String("connID", connID.String()), slog.String("userID", userID))
	return nil
}

// ConnectionClosed deregisters the connection and, if it was bound, marks
// the user offline. Safe to call for connections that never authenticated.
func (r *Relay) ConnectionClosed(connID uuid.UUID) {
	// The bound identity comes back from the registry itself so it is read
	// under the same lock that wrote it.
	userID, err := r.state.DeregisterConnection(connID)
	if err != nil {
		r.logger.Error("Failed to deregister connection", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	if userID != "" {
		// The connection's own context is gone by now; presence teardown
		// runs on its own.
		r.setPresence(context.Background(), userID, store.StatusOffline)
	}
}

// HandleMessage is the transport's message callback. Every event is handled
// as an independent unit of work so a slow store call on one event never
// blocks the next.
func (r *Relay) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	conn, ok := r.state.GetConnection(connID)
	if !ok {
		r.logger.Warn("Event from unknown connection", slog.String("connID", connID.String()))
		return
	}

	var event ClientEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		r.sendError(conn, errors.InvalidArg("malformed event frame"))
		return
	}

	go r.dispatch(ctx, conn, &event)
}

func (r *Relay) dispatch(ctx context.Context, conn *state.Connection, event *ClientEvent) {
	handler, ok := r.handlers[event.Event]
	if !ok {
		r.sendError(conn, errors.InvalidArg("unknown event: "+event.Event))
		return
	}
	if conn.User == nil {
		r.sendError(conn, errors.Unauthorized("connection is not authenticated"))
		return
	}

	if err := handler(ctx, conn, event.Payload); err != nil {
		r.logger.Warn("Event handler failed",
			slog.String("event", event.Event),
			slog.String("connID", conn.ID.String()),
			slog.String("userID", conn.User.ID),
			slog.Any("error", err),
		)
		r.sendError(conn, err)
	}
}

// sendError reports a failure to the originating connection only. Internal
// details never reach the client; only AppError messages do.
func (r *Relay) sendError(conn *state.Connection, err error) {
	message := "internal server error"
	if appErr, ok := errors.AsAppError(err); ok {
		message = appErr.Message
	}
	frame, mErr := marshalEvent(EventError, errorPayload{Message: message})
	if mErr != nil {
		r.logger.Error("Failed to marshal error event", slog.Any("error", mErr))
		return
	}
	conn.Transport.Send(frame)
}
