package relay

import (
	"context"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
)

// setPresence writes the stored status and announces the transition to every
// live connection. Presence is best-effort: a store failure is logged and
// swallowed, never retried, and never blocks session setup or teardown.
func (r *Relay) setPresence(ctx context.Context, userID string, status store.Status) {
	user, err := r.users.UpdateStatus(ctx, userID, status)
	if err != nil {
		r.logger.Error("Status update failed",
			slog.String("userID", userID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
		return
	}
	if user == nil {
		// unknown user, nothing to announce
		return
	}

	frame, err := marshalEvent(EventStatusUpdate, statusUpdatePayload{UserID: userID, Status: status})
	if err != nil {
		r.logger.Error("Failed to marshal status update", slog.Any("error", err))
		return
	}
	sent := r.state.BroadcastAll(frame)
	r.logger.Debug("Presence broadcast",
		slog.String("userID", userID),
		slog.String("status", string(status)),
		slog.Int("connections", sent),
	)
}
