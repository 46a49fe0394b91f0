package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"imgmeasure/models"
	"imgmeasure/pkg/units"
)

// Sink persists runs and their results.
type Sink interface {
	Begin(ctx context.Context, input string, rows int) (runID string, err error)
	Save(ctx context.Context, runID string, results []Result) error
	Finish(ctx context.Context, runID, output string, s Stats) error
}

// DefaultSaveBatch is the insert batch size of GormSink.
const DefaultSaveBatch = 500

// GormSink stores runs and predictions through gorm.
type GormSink struct {
	db        *gorm.DB
	batchSize int
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db, batchSize: DefaultSaveBatch}
}

func (s *GormSink) Begin(ctx context.Context, input string, rows int) (string, error) {
	run := models.Run{ID: uuid.NewString(), InputPath: input, Rows: rows}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

func (s *GormSink) Save(ctx context.Context, runID string, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	preds := make([]models.Prediction, len(results))
	for i, r := range results {
		preds[i] = models.Prediction{
			RunID:        runID,
			RowIndex:     r.Row.Index,
			ImageLink:    units.Snippet(r.Row.ImageLink, 1000),
			GroupID:      r.Row.GroupID,
			EntityName:   r.Row.EntityName,
			Value:        r.Prediction,
			Failed:       r.Reason != "",
			FailedReason: units.Snippet(r.Reason, 250),
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(preds, s.batchSize).Error; err != nil {
		return fmt.Errorf("save predictions: %w", err)
	}
	return nil
}

func (s *GormSink) Finish(ctx context.Context, runID, output string, st Stats) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.Run{ID: runID}).Updates(map[string]any{
		"output_path": output,
		"measured":    st.Measured,
		"empty":       st.Empty,
		"invalid":     st.Invalid,
		"failed":      st.Failed,
		"finished_at": &now,
	}).Error
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
