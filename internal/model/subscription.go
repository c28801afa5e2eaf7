package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Endpoint  string    `gorm:"type:text;not null;uniqueIndex" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;type:text;not null" json:"p256dh"`
	Auth      string    `gorm:"type:text;not null" json:"auth"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Setting is a single persisted user preference.
type Setting struct {
	Key   string `gorm:"primaryKey;column:name;size:64"`
	Value string `gorm:"type:text;not null"`
}

// All lists every model that must be migrated.
func All() []interface{} {
	return []interface{}{&Plant{}, &PlantPhoto{}, &Reminder{}, &PushSubscription{}, &Setting{}}
}
