package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/crypto"
	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
)

// handleChatMessage routes one inbound chat payload: resolve the sender,
// authorize group sends, then fan out along the file, direct-text or
// group-text path. Any failure drops the message and reports to the sender
// only; nothing is partially persisted or partially broadcast.
func (r *Relay) handleChatMessage(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	p, err := parseChatPayload(payload)
	if err != nil {
		return err
	}

	sender, err := r.users.FindByID(ctx, conn.User.ID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "sender lookup failed", err)
	}
	if sender == nil {
		return errors.NotFound("Sender not found")
	}

	// Group sends are authorized up front, file or not: the creator may
	// always send, everyone else needs canSendMessages on their membership.
	if p.Group != "" {
		group, err := r.groups.FindByID(ctx, p.Group)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "group lookup failed", err)
		}
		if group == nil {
			return errors.NotFound("Group not found")
		}
		if group.CreatorID != sender.ID {
			member, ok := group.Member(sender.ID)
			if !ok || !member.CanSendMessages {
				return errors.Forbidden("No permission to send messages in this group")
			}
		}
	}

	if p.File != nil {
		return r.relayFileMessage(sender, p)
	}
	if p.Recipient != "" {
		return r.relayDirectMessage(ctx, sender, p)
	}
	return r.relayGroupMessage(ctx, sender, p)
}

// relayFileMessage broadcasts a file reference without persisting anything;
// file durability belongs to the upload service, not this relay.
func (r *Relay) relayFileMessage(sender *store.User, p *chatPayload) error {
	env := MessageEnvelope{
		Sender:    SenderInfo{ID: sender.ID, Name: sender.Name},
		File:      p.File,
		Recipient: p.Recipient,
		Group:     p.Group,
		TempID:    p.TempID,
		Timestamp: time.Now().UTC(),
	}
	frame, err := marshalEvent(EventChatMessage, env)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal file message", err)
	}

	if p.Recipient != "" {
		r.state.Broadcast(p.Recipient, frame)
		r.state.Broadcast(sender.ID, frame)
	} else {
		r.state.Broadcast(p.Group, frame)
	}
	return nil
}

// relayDirectMessage persists a direct text message and emits two envelopes
// from the one record: ciphertext to the recipient, the original plaintext
// back to the sender. The sender must never see their own ciphertext.
func (r *Relay) relayDirectMessage(ctx context.Context, sender *store.User, p *chatPayload) error {
	recipient, err := r.users.FindByID(ctx, p.Recipient)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "recipient lookup failed", err)
	}
	if recipient == nil {
		return errors.NotFound("Recipient not found")
	}

	ciphertext, err := crypto.Encrypt(p.Content, recipient.PublicKey)
	if err != nil {
		return err
	}

	saved, err := r.persistMessage(ctx, &store.Message{
		SenderID:         sender.ID,
		RecipientID:      recipient.ID,
		PlaintextContent: p.Content,
		EncryptedContent: ciphertext,
		TempID:           p.TempID,
	})
	if err != nil {
		return err
	}

	base := MessageEnvelope{
		ID:        saved.ID,
		Sender:    SenderInfo{ID: sender.ID, Name: sender.Name},
		Recipient: recipient.ID,
		TempID:    p.TempID,
		Timestamp: saved.Timestamp,
	}

	recipientEnv := base
	recipientEnv.Content = saved.EncryptedContent
	recipientFrame, err := marshalEvent(EventChatMessage, recipientEnv)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal message", err)
	}

	senderEnv := base
	senderEnv.Content = saved.PlaintextContent
	senderFrame, err := marshalEvent(EventChatMessage, senderEnv)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal message", err)
	}

	r.state.Broadcast(recipient.ID, recipientFrame)
	r.state.Broadcast(sender.ID, senderFrame)
	r.logger.Debug("Relayed direct message",
		slog.String("from", sender.ID),
		slog.String("to", recipient.ID),
		slog.String("messageID", saved.ID),
	)
	return nil
}

// relayGroupMessage persists a plaintext group message and emits a single
// envelope to the group room. Group messages never carry ciphertext.
func (r *Relay) relayGroupMessage(ctx context.Context, sender *store.User, p *chatPayload) error {
	saved, err := r.persistMessage(ctx, &store.Message{
		SenderID:         sender.ID,
		GroupID:          p.Group,
		PlaintextContent: p.Content,
		TempID:           p.TempID,
	})
	if err != nil {
		return err
	}

	env := MessageEnvelope{
		ID:        saved.ID,
		Sender:    SenderInfo{ID: sender.ID, Name: sender.Name},
		Content:   saved.PlaintextContent,
		Group:     p.Group,
		TempID:    p.TempID,
		Timestamp: saved.Timestamp,
	}
	frame, err := marshalEvent(EventChatMessage, env)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal message", err)
	}

	r.state.Broadcast(p.Group, frame)
	r.logger.Debug("Relayed group message",
		slog.String("from", sender.ID),
		slog.String("groupID", p.Group),
		slog.String("messageID", saved.ID),
	)
	return nil
}

// persistMessage writes the record and reads it back with the sender
// relation populated, which also stamps the authoritative timestamp.
func (r *Relay) persistMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	saved, err := r.messages.Create(ctx, msg)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to persist message", err)
	}
	populated, err := r.messages.FindByIDWithSender(ctx, saved.ID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "message readback failed", err)
	}
	if populated == nil {
		return nil, errors.Internal("message vanished after save")
	}
	return populated, nil
}
