package models

import (
	"time"
)

// Prediction stores the outcome for one dataset row.
type Prediction struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	RunID      string `gorm:"size:36;index;not null"`
	RowIndex   string `gorm:"column:row_index;size:64;index"`
	ImageLink  string `gorm:"size:1024"`
	GroupID    string `gorm:"size:64"`
	EntityName string `gorm:"size:64;index"`
	Value      string `gorm:"size:255"` // rendered prediction, empty when nothing was found
	// Row kept even when OCR failed so the failure can be reviewed
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}

// All lists the models created by migrations, parents first.
func All() []any {
	return []any{&Run{}, &Prediction{}}
}
