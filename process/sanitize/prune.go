// Package sanitize removes stored runs that are no longer needed.
package sanitize

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"imgmeasure/models"
)

// PruneResult describes what a prune did, or would do on a dry run.
type PruneResult struct {
	Runs        int64
	Predictions int64
	DryRun      bool
}

// PruneRuns deletes runs created before cutoff together with their
// predictions. With dryRun set it only counts them.
func PruneRuns(ctx context.Context, db *gorm.DB, cutoff time.Time, dryRun bool) (PruneResult, error) {
	res := PruneResult{DryRun: dryRun}
	db = db.WithContext(ctx)

	old := db.Model(&models.Run{}).Select("id").Where("created_at < ?", cutoff)
	if err := db.Model(&models.Run{}).Where("created_at < ?", cutoff).Count(&res.Runs).Error; err != nil {
		return res, fmt.Errorf("count runs: %w", err)
	}
	if err := db.Model(&models.Prediction{}).Where("run_id IN (?)", old).Count(&res.Predictions).Error; err != nil {
		return res, fmt.Errorf("count predictions: %w", err)
	}
	if dryRun || res.Runs == 0 {
		return res, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&models.Run{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("run_id IN (?)", old).Delete(&models.Prediction{}).Error; err != nil {
			return fmt.Errorf("delete predictions: %w", err)
		}
		if err := tx.Where("created_at < ?", cutoff).Delete(&models.Run{}).Error; err != nil {
			return fmt.Errorf("delete runs: %w", err)
		}
		return nil
	})
	return res, err
}
