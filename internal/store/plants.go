package store

import (
	"context"
	"fmt"

	"github.com/pathakanu/waterit/internal/model"
	"gorm.io/gorm"
)

// CreatePlant persists a new plant.
func (s *Store) CreatePlant(ctx context.Context, plant *model.Plant) error {
	return s.db.WithContext(ctx).Omit("Photos", "Reminders").Create(plant).Error
}

// ListPlants returns every plant, newest first.
func (s *Store) ListPlants(ctx context.Context) ([]model.Plant, error) {
	var plants []model.Plant
	err := s.db.WithContext(ctx).
		Preload("Photos").
		Order("created_at DESC, id DESC").
		Find(&plants).Error
	return plants, err
}

// GetPlant loads a plant without its associations.
func (s *Store) GetPlant(ctx context.Context, id uint) (*model.Plant, error) {
	var plant model.Plant
	if err := s.db.WithContext(ctx).First(&plant, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &plant, nil
}

// GetPlantDetail loads a plant with its photos and reminders.
func (s *Store) GetPlantDetail(ctx context.Context, id uint) (*model.Plant, error) {
	var plant model.Plant
	err := s.db.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC, id ASC") }).
		Preload("Reminders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&plant, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &plant, nil
}

// UpdatePlant saves the editable plant fields.
func (s *Store) UpdatePlant(ctx context.Context, plant *model.Plant) error {
	res := s.db.WithContext(ctx).Model(&model.Plant{ID: plant.ID}).
		Select("Name", "ScientificName", "Origin", "AgeMonths", "Light", "Water", "Soil", "Notes").
		Updates(plant)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlant removes a plant together with its photos and reminders and
// returns the file names of the removed photos so callers can clean up uploads.
func (s *Store) DeletePlant(ctx context.Context, id uint) ([]string, error) {
	var files []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plant model.Plant
		if err := tx.Preload("Photos").First(&plant, id).Error; err != nil {
			return notFound(err)
		}
		for _, p := range plant.Photos {
			files = append(files, p.Filename)
		}
		if err := tx.Where("plant_id = ?", id).Delete(&model.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		if err := tx.Where("plant_id = ?", id).Delete(&model.PlantPhoto{}).Error; err != nil {
			return fmt.Errorf("delete photos: %w", err)
		}
		return tx.Delete(&model.Plant{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// AddPhoto records an uploaded photo for a plant.
func (s *Store) AddPhoto(ctx context.Context, photo *model.PlantPhoto) error {
	return s.db.WithContext(ctx).Create(photo).Error
}

// DeletePhoto removes photo metadata and returns the deleted record.
func (s *Store) DeletePhoto(ctx context.Context, id uint) (*model.PlantPhoto, error) {
	var photo model.PlantPhoto
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&photo, id).Error; err != nil {
			return notFound(err)
		}
		return tx.Delete(&photo).Error
	})
	if err != nil {
		return nil, err
	}
	return &photo, nil
}
