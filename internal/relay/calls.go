package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
)

// Call signaling is stateless forwarding: signals are relayed after
// existence/membership checks and nothing is persisted. The relay keeps no
// record of who is in a call; stale or out-of-order signals (an accept for a
// call already ended) are forwarded as-is and only logged by the call
// tracker. Reconciliation is the clients' burden.

func (r *Relay) handleCallRequest(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	to, err := requireStringField(payload, "to")
	if err != nil {
		return err
	}
	if err := r.requireUser(ctx, to, "Recipient not found"); err != nil {
		return err
	}

	r.calls.observe(conn.User.ID, to, EventCallRequest)
	frame, err := marshalEvent(EventCallRequest, callFromPayload{From: conn.User.ID})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal call signal", err)
	}
	r.state.Broadcast(to, frame)
	r.logger.Debug("Call requested", slog.String("from", conn.User.ID), slog.String("to", to))
	return nil
}

func (r *Relay) handleCallAccepted(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	return r.relayCallAnswer(ctx, conn, payload, EventCallAccepted)
}

func (r *Relay) handleCallRejected(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	return r.relayCallAnswer(ctx, conn, payload, EventCallRejected)
}

// relayCallAnswer forwards a zero-payload accept/reject signal to the
// caller's personal room.
func (r *Relay) relayCallAnswer(ctx context.Context, conn *state.Connection, payload json.RawMessage, event string) error {
	to, err := requireStringField(payload, "to")
	if err != nil {
		return err
	}
	if err := r.requireUser(ctx, to, "Caller not found"); err != nil {
		return err
	}

	r.calls.observe(conn.User.ID, to, event)
	frame, err := marshalEvent(event, nil)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal call signal", err)
	}
	r.state.Broadcast(to, frame)
	r.logger.Debug("Call answered", slog.String("event", event), slog.String("by", conn.User.ID), slog.String("to", to))
	return nil
}

// handleCallEnded tolerates a missing counterpart: a call that never reached
// a connected state ends with no one to notify.
func (r *Relay) handleCallEnded(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	to := stringField(payload, "to")
	if to == "" {
		r.logger.Debug("callEnded without counterpart, skipping", slog.String("userID", conn.User.ID))
		return nil
	}
	if err := r.requireUser(ctx, to, "Other party not found"); err != nil {
		return err
	}

	r.calls.observe(conn.User.ID, to, EventCallEnded)
	frame, err := marshalEvent(EventCallEnded, nil)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal call signal", err)
	}
	r.state.Broadcast(to, frame)
	r.logger.Debug("Call ended", slog.String("between", conn.User.ID), slog.String("and", to))
	return nil
}

// handleGroupCallStarted relays a call-started signal to the whole group
// room. The caller identity is always the authenticated sender; a
// client-supplied callerId is not trusted.
func (r *Relay) handleGroupCallStarted(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	groupID, err := r.requireGroupMembership(ctx, conn, payload)
	if err != nil {
		return err
	}

	r.calls.observeGroup(groupID, conn.User.ID, EventGroupCallStarted)
	frame, err := marshalEvent(EventGroupCallStarted, groupCallPayload{GroupID: groupID, CallerID: conn.User.ID})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal call signal", err)
	}
	r.state.Broadcast(groupID, frame)
	r.logger.Debug("Group call started", slog.String("groupID", groupID), slog.String("callerID", conn.User.ID))
	return nil
}

func (r *Relay) handleEndGroupCall(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	groupID, err := r.requireGroupMembership(ctx, conn, payload)
	if err != nil {
		return err
	}

	r.calls.observeGroup(groupID, conn.User.ID, EventGroupCallEnded)
	frame, err := marshalEvent(EventGroupCallEnded, nil)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal call signal", err)
	}
	r.state.Broadcast(groupID, frame)
	r.logger.Debug("Group call ended", slog.String("groupID", groupID), slog.String("by", conn.User.ID))
	return nil
}

// requireUser fails with notFoundMsg when the user does not exist.
func (r *Relay) requireUser(ctx context.Context, userID, notFoundMsg string) error {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "user lookup failed", err)
	}
	if user == nil {
		return errors.NotFound(notFoundMsg)
	}
	return nil
}

// requireGroupMembership validates the groupId payload field, group
// existence and the sender's membership, returning the group id.
func (r *Relay) requireGroupMembership(ctx context.Context, conn *state.Connection, payload json.RawMessage) (string, error) {
	groupID, err := requireStringField(payload, "groupId")
	if err != nil {
		return "", err
	}
	group, err := r.groups.FindByID(ctx, groupID)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, "group lookup failed", err)
	}
	if group == nil {
		return "", errors.NotFound("Group not found")
	}
	if !group.IsMember(conn.User.ID) {
		return "", errors.Forbidden("User not a member of this group")
	}
	return groupID, nil
}
