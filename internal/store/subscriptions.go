package store

import (
	"context"

	"github.com/pathakanu/waterit/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertSubscription stores a subscription; an existing endpoint gets its keys replaced.
func (s *Store) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error
}

// ListSubscriptions returns every registered subscription.
func (s *Store) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Order("id ASC").Find(&subs).Error
	return subs, err
}

// GetSubscription looks a subscription up by endpoint.
func (s *Store) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).First(&sub).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// DeleteSubscription removes the subscription with endpoint in its own
// transaction. Deleting an unknown endpoint is not an error.
func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	})
}
