package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
)

// handleJoinGroup admits the connection into a group room after re-checking
// persisted membership. Membership changes after a successful join are not
// enforced retroactively against the room.
func (r *Relay) handleJoinGroup(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	groupID, err := requireStringField(payload, "groupId")
	if err != nil {
		return err
	}

	group, err := r.groups.FindByID(ctx, groupID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "group lookup failed", err)
	}
	if group == nil {
		return errors.NotFound("Group not found")
	}
	if !group.IsMember(conn.User.ID) {
		return errors.Forbidden("User not a member of this group")
	}

	if err := r.state.JoinRoom(conn.ID, groupID); err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to join group room", err)
	}
	r.logger.Debug("Joined group room", slog.String("userID", conn.User.ID), slog.String("groupID", groupID))
	return nil
}

// handleLeaveGroup removes the connection from the room unconditionally.
// There is nothing to validate and nothing that can fail.
func (r *Relay) handleLeaveGroup(_ context.Context, conn *state.Connection, payload json.RawMessage) error {
	groupID := stringField(payload, "groupId")
	if groupID == "" {
		return nil
	}
	r.state.LeaveRoom(conn.ID, groupID)
	r.logger.Debug("Left group room", slog.String("userID", conn.User.ID), slog.String("groupID", groupID))
	return nil
}
