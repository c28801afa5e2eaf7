package store

import (
	"context"

	"github.com/pathakanu/waterit/internal/model"
	"gorm.io/gorm/clause"
)

// SettingDefaultCity is the key of the home page weather city.
const SettingDefaultCity = "default_city"

// GetSetting returns the stored value for key, or def when unset.
func (s *Store) GetSetting(ctx context.Context, key, def string) (string, error) {
	var setting model.Setting
	err := s.db.WithContext(ctx).Where("name = ?", key).Limit(1).Find(&setting).Error
	if err != nil {
		return "", err
	}
	if setting.Key == "" {
		return def, nil
	}
	return setting.Value, nil
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: value}).Error
}
