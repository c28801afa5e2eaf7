package model

import "time"

// Plant is a houseplant tracked by the user.
type Plant struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `gorm:"size:120;not null" json:"name"`
	ScientificName string  `gorm:"size:200" json:"scientific_name,omitempty"`
	Origin         string  `gorm:"size:200" json:"origin,omitempty"`
	AgeMonths      *int    `json:"age_months,omitempty"`
	Light          string  `gorm:"size:120" json:"light,omitempty"`
	Water          string  `gorm:"size:120" json:"water,omitempty"`
	Soil           string  `gorm:"size:200" json:"soil,omitempty"`
	Notes          string  `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Photos    []PlantPhoto `gorm:"constraint:OnDelete:CASCADE" json:"photos,omitempty"`
	Reminders []Reminder   `gorm:"constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
}

// PlantPhoto is the metadata of an uploaded photo; the file lives in the upload directory.
type PlantPhoto struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PlantID    uint      `gorm:"index;not null" json:"plant_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}
