// Package users is the read side of marketplace accounts. Provisioning lives
// outside this service, so nothing here writes.
package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByIDs returns the users found for ids. Unknown ids are simply missing
// from the map; callers decide whether that is an error.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	found := map[uuid.UUID]models.User{}
	if len(ids) == 0 {
		return found, nil
	}

	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("id IN ?", dedupe(ids)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		found[u.ID] = u
	}
	return found, nil
}

// ListActiveAdminIDs is ordered oldest account first.
func (r *Repository) ListActiveAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", enums.UserRoleAdmin).
		Where("is_active = ?", true).
		Order("created_at").
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
