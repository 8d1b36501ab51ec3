package bunstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type UserRepository struct {
	db     *bun.DB
	logger *slog.Logger
}

var _ store.UserStore = (*UserRepository)(nil)

func NewUserRepository(db *bun.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger.With(slog.String("component", "user_repository")),
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*store.User, error) {
	user := new(store.User)
	err := r.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "userRepo.FindByID")
	}
	return user, nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status store.Status) (*store.User, error) {
	user := new(store.User)
	err := r.db.NewUpdate().
		Model(user).
		Set("status = ?", status).
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "userRepo.UpdateStatus")
	}
	return user, nil
}
