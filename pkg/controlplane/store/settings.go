package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ============================================
// SETTINGS OPERATIONS
// ============================================

// GetSetting returns the stored value, or "" when the key is unset.
func (s *GORMStore) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

func (s *GORMStore) SetSetting(ctx context.Context, key, value string) error {
	setting := models.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Save(&setting).Error
}

func (s *GORMStore) DeleteSetting(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error
}

func (s *GORMStore) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	return listOrdered[models.Setting](s.db, ctx, "key ASC", 0)
}

// GetBoolSetting reads a boolean setting. Unset or unparsable values yield
// def with ok=false.
func GetBoolSetting(ctx context.Context, s SettingsStore, key string, def bool) (value bool, ok bool, err error) {
	raw, err := s.GetSetting(ctx, key)
	if err != nil {
		return def, false, err
	}
	if raw == "" {
		return def, false, nil
	}
	v, perr := strconv.ParseBool(raw)
	if perr != nil {
		return def, false, nil
	}
	return v, true, nil
}
