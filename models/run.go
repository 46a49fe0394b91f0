package models

import (
	"time"
)

// Run is one batch execution over a dataset file.
type Run struct {
	ID         string `gorm:"primaryKey;size:36"` // uuid
	CreatedAt  time.Time
	UpdatedAt  time.Time
	InputPath  string `gorm:"size:512;not null"`
	OutputPath string `gorm:"size:512"`
	Rows       int
	Measured   int
	Empty      int
	Invalid    int
	Failed     int
	FinishedAt *time.Time
	// Predictions are removed together with their run.
	Predictions []Prediction `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
