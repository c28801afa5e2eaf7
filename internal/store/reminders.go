package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/waterit/internal/model"
	"github.com/pathakanu/waterit/internal/schedule"
	"gorm.io/gorm"
)

// CreateReminder persists a reminder. Times are normalised to UTC.
func (s *Store) CreateReminder(ctx context.Context, reminder *model.Reminder) error {
	normaliseReminder(reminder)
	return s.db.WithContext(ctx).Create(reminder).Error
}

// GetReminder loads a reminder by id.
func (s *Store) GetReminder(ctx context.Context, id uint) (*model.Reminder, error) {
	var reminder model.Reminder
	if err := s.db.WithContext(ctx).First(&reminder, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reminder, nil
}

// UpdateReminder saves the user-editable fields and the recomputed next run.
func (s *Store) UpdateReminder(ctx context.Context, reminder *model.Reminder) error {
	normaliseReminder(reminder)
	res := s.db.WithContext(ctx).Model(&model.Reminder{ID: reminder.ID}).
		Select("IntervalText", "TimeOfDay", "StartDate", "Active", "NextRunAt").
		Updates(reminder)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReminder removes a reminder.
func (s *Store) DeleteReminder(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Reminder{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestReminders returns the most recently created reminders.
func (s *Store) LatestReminders(ctx context.Context, limit int) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

// DueReminders returns active reminders whose next run is at or before now.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("next_run_at IS NOT NULL").
		Where("next_run_at <= ?", now.UTC()).
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	return reminders, nil
}

// ApplySchedule writes the stamps of one tick in a single transaction.
// Either every update is stored or none is.
func (s *Store) ApplySchedule(ctx context.Context, updates []model.ScheduleUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			err := tx.Model(&model.Reminder{}).
				Where("id = ?", u.ReminderID).
				Updates(map[string]interface{}{
					"last_sent_at": u.LastSentAt.UTC(),
					"next_run_at":  u.NextRunAt.UTC(),
				}).Error
			if err != nil {
				return fmt.Errorf("update reminder %d: %w", u.ReminderID, err)
			}
		}
		return nil
	})
}

// BackfillNextRun computes next_run_at for reminders that never had one,
// anchored on their start date (today when unset). It returns how many rows
// were filled.
func (s *Store) BackfillNextRun(ctx context.Context, now time.Time) (int, error) {
	var pending []model.Reminder
	if err := s.db.WithContext(ctx).Where("next_run_at IS NULL").Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("query reminders without next run: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range pending {
			next := schedule.NextRun(r.IntervalText, r.TimeOfDay, r.StartDate, now).UTC()
			if err := tx.Model(&model.Reminder{}).Where("id = ?", r.ID).Update("next_run_at", next).Error; err != nil {
				return fmt.Errorf("backfill reminder %d: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func normaliseReminder(r *model.Reminder) {
	if r.StartDate != nil {
		d := schedule.DateOf(*r.StartDate)
		r.StartDate = &d
	}
	if r.NextRunAt != nil {
		n := r.NextRunAt.UTC()
		r.NextRunAt = &n
	}
	if r.LastSentAt != nil {
		l := r.LastSentAt.UTC()
		r.LastSentAt = &l
	}
}
