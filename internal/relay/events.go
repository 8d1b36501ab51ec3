package relay

import (
	"encoding/json"
	"time"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
)

// Inbound event names (client -> relay).
const (
	EventJoinGroup        = "joinGroup"
	EventLeaveGroup       = "leaveGroup"
	EventChatMessage      = "chatMessage"
	EventCallRequest      = "callRequest"
	EventCallAccepted     = "callAccepted"
	EventCallRejected     = "callRejected"
	EventCallEnded        = "callEnded"
	EventGroupCallStarted = "groupCallStarted"
	EventEndGroupCall     = "endGroupCall"
)

// Outbound event names (relay -> client).
const (
	EventUserID         = "userId"
	EventStatusUpdate   = "statusUpdate"
	EventError          = "error"
	EventGroupCallEnded = "groupCallEnded"
)

// ClientEvent is the frame every inbound websocket message must carry.
type ClientEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is the outbound frame shape.
type ServerEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func marshalEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(ServerEvent{Event: event, Payload: payload})
}

type errorPayload struct {
	Message string `json:"message"`
}

type statusUpdatePayload struct {
	UserID string       `json:"userId"`
	Status store.Status `json:"status"`
}

type callFromPayload struct {
	From string `json:"from"`
}

type groupCallPayload struct {
	GroupID  string `json:"groupId"`
	CallerID string `json:"callerId"`
}

// SenderInfo identifies the originator inside a message envelope.
type SenderInfo struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// MessageEnvelope is the outbound chatMessage representation, built
// per-recipient and distinct from the persisted record. Direct messages
// produce two envelopes from the same record: the recipient's carries the
// ciphertext, the sender's echo carries the original plaintext.
type MessageEnvelope struct {
	ID        string          `json:"_id,omitempty"`
	Sender    SenderInfo      `json:"sender"`
	Content   string          `json:"content,omitempty"`
	File      json.RawMessage `json:"file,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Group     string          `json:"group,omitempty"`
	TempID    string          `json:"tempId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
