// Package reminder runs the periodic tick that fires due care reminders and
// reschedules them.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pathakanu/waterit/internal/model"
	"github.com/pathakanu/waterit/internal/push"
	"github.com/pathakanu/waterit/internal/schedule"
	"github.com/pathakanu/waterit/internal/store"
	"go.uber.org/zap"
)

// Store is what a tick needs from persistence.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]model.Reminder, error)
	GetPlant(ctx context.Context, id uint) (*model.Plant, error)
	ApplySchedule(ctx context.Context, updates []model.ScheduleUpdate) error
}

// Notifier fans a message out to push subscribers.
type Notifier interface {
	DeliverToAll(ctx context.Context, msg push.Message) push.Result
}

// MessageSender is an optional secondary channel that receives a copy of each reminder.
type MessageSender interface {
	Notify(ctx context.Context, title, body string) error
}

// TickResult summarises one tick.
type TickResult struct {
	Due       int
	Fired     int
	Orphaned  int
	Delivered int
	Pruned    int
}

// Orchestrator fires due reminders and commits their new schedule.
type Orchestrator struct {
	store    Store
	notifier Notifier
	mirror   MessageSender
	loc      *time.Location
	log      *zap.Logger
}

// NewOrchestrator builds an Orchestrator computing schedules in loc.
func NewOrchestrator(st Store, notifier Notifier, loc *time.Location, log *zap.Logger) *Orchestrator {
	if loc == nil {
		loc = time.Local
	}
	return &Orchestrator{
		store:    st,
		notifier: notifier,
		loc:      loc,
		log:      log.Named("reminder"),
	}
}

// SetMirror installs a secondary channel; nil disables it.
func (o *Orchestrator) SetMirror(m MessageSender) {
	o.mirror = m
}

// Tick fires every reminder due at now. Deliveries happen per reminder, but
// the resulting last_sent_at/next_run_at stamps are committed together at the
// end; an error means none of them were stored and the reminders stay due for
// the next tick.
//
// The next run is anchored on now's date rather than on the missed slot, so a
// late tick shifts the series to the late tick's day.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	now = now.In(o.loc)

	due, err := o.store.DueReminders(ctx, now)
	if err != nil {
		return TickResult{}, err
	}

	res := TickResult{Due: len(due)}
	updates := make([]model.ScheduleUpdate, 0, len(due))
	for _, rem := range due {
		plant, err := o.store.GetPlant(ctx, rem.PlantID)
		if errors.Is(err, store.ErrNotFound) {
			res.Orphaned++
			o.log.Debug("skipping reminder of missing plant", zap.Uint("reminder_id", rem.ID), zap.Uint("plant_id", rem.PlantID))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("load plant %d: %w", rem.PlantID, err)
		}

		msg := Notification(plant, &rem)
		delivery := o.notifier.DeliverToAll(ctx, msg)
		if delivery.Err != nil {
			o.log.Warn("reminder not delivered", zap.Uint("reminder_id", rem.ID), zap.Error(delivery.Err))
		}
		res.Delivered += delivery.Delivered
		res.Pruned += delivery.Pruned

		if o.mirror != nil {
			if err := o.mirror.Notify(ctx, msg.Title, msg.Body); err != nil {
				o.log.Warn("mirror notification failed", zap.Uint("reminder_id", rem.ID), zap.Error(err))
			}
		}

		updates = append(updates, model.ScheduleUpdate{
			ReminderID: rem.ID,
			LastSentAt: now,
			NextRunAt:  schedule.NextRun(rem.IntervalText, rem.TimeOfDay, &now, now),
		})
		res.Fired++
	}

	if len(updates) == 0 {
		return res, nil
	}
	if err := o.store.ApplySchedule(ctx, updates); err != nil {
		return res, fmt.Errorf("commit tick: %w", err)
	}
	return res, nil
}

// Notification builds the push message for a reminder.
func Notification(plant *model.Plant, rem *model.Reminder) push.Message {
	return push.Message{
		Title: "Reminder: " + plant.Name,
		Body:  strings.TrimSpace(fmt.Sprintf("Scheduled: every %s at %s", rem.IntervalText, rem.TimeOfDay)),
		URL:   fmt.Sprintf("/plants/%d", plant.ID),
	}
}
