package model

import "time"

// Reminder is a recurring care reminder attached to a plant.
//
// IntervalText and TimeOfDay are kept exactly as the user typed them and are
// parsed every time a next run is computed.
type Reminder struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PlantID      uint       `gorm:"index;not null" json:"plant_id"`
	IntervalText string     `gorm:"size:80;not null" json:"interval_text"`
	TimeOfDay    string     `gorm:"size:10;not null" json:"time_of_day"`
	StartDate    *time.Time `json:"start_date,omitempty"`

	Active     bool       `gorm:"not null;index" json:"active"`
	NextRunAt  *time.Time `gorm:"index" json:"next_run_at,omitempty"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ScheduleUpdate is the state a tick writes back for one fired reminder.
type ScheduleUpdate struct {
	ReminderID uint
	LastSentAt time.Time
	NextRunAt  time.Time
}
