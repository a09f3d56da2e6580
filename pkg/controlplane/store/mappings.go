package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ============================================
// ROLE MAPPING OPERATIONS
// ============================================

func (s *GORMStore) GetMapping(ctx context.Context, id string) (*models.RoleMapping, error) {
	return getByField[models.RoleMapping](s.db, ctx, "id", id, models.ErrMappingNotFound)
}

func (s *GORMStore) ListMappings(ctx context.Context) ([]*models.RoleMapping, error) {
	return listOrdered[models.RoleMapping](s.db, ctx, "created_at ASC, id ASC", 0)
}

func (s *GORMStore) CreateMapping(ctx context.Context, m *models.RoleMapping) (string, error) {
	return createWithID(s.db, ctx, m, func(m *models.RoleMapping, id string) { m.ID = id }, m.ID, models.ErrDuplicateMapping)
}

func (s *GORMStore) UpdateMapping(ctx context.Context, m *models.RoleMapping) error {
	m.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).Model(&models.RoleMapping{}).
		Where("id = ?", m.ID).
		Select("source_community_id", "source_role_id", "target_community_id", "target_role_id", "description", "enabled", "updated_at").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrMappingNotFound
	}
	return nil
}

func (s *GORMStore) DeleteMapping(ctx context.Context, id string) error {
	return deleteByField[models.RoleMapping](s.db, ctx, "id", id, models.ErrMappingNotFound)
}

func (s *GORMStore) ReplaceMappings(ctx context.Context, mappings []*models.RoleMapping) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.RoleMapping{}).Error; err != nil {
			return err
		}
		if len(mappings) == 0 {
			return nil
		}
		if err := tx.Create(mappings).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateMapping
			}
			return err
		}
		return nil
	})
}
