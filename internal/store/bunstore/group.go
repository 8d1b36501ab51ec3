package bunstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type GroupRepository struct {
	db     *bun.DB
	logger *slog.Logger
}

var _ store.GroupStore = (*GroupRepository)(nil)

func NewGroupRepository(db *bun.DB, logger *slog.Logger) *GroupRepository {
	return &GroupRepository{
		db:     db,
		logger: logger.With(slog.String("component", "group_repository")),
	}
}

// FindByID loads the group and its member records in one relation query.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*store.Group, error) {
	group := new(store.Group)
	err := r.db.NewSelect().
		Model(group).
		Relation("Members").
		Where("g.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "groupRepo.FindByID")
	}
	return group, nil
}
