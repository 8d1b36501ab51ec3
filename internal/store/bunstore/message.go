package bunstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type MessageRepository struct {
	db     *bun.DB
	logger *slog.Logger
}

var _ store.MessageStore = (*MessageRepository)(nil)

func NewMessageRepository(db *bun.DB, logger *slog.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger.With(slog.String("component", "message_repository")),
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *store.Message) (*store.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.db.NewInsert().Model(msg).Returning("*").Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.Create")
	}
	return msg, nil
}

// FindByIDWithSender returns the message with its sender's name populated.
func (r *MessageRepository) FindByIDWithSender(ctx context.Context, id string) (*store.Message, error) {
	msg := new(store.Message)
	err := r.db.NewSelect().
		Model(msg).
		Relation("Sender", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name")
		}).
		Where("m.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.FindByIDWithSender")
	}
	return msg, nil
}
