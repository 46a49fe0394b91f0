package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job processes one dataset file end to end.
type Job struct {
	Predictor Predictor
	Options   Options
	// Sink is optional.
	Sink Sink
}

// Process reads input, predicts every row, writes output and records the
// run in the sink. Sink failures are logged; they do not fail the job.
func (j *Job) Process(ctx context.Context, input, output string) (Stats, error) {
	log := j.Options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rows, err := ReadDataset(input)
	if err != nil {
		return Stats{}, err
	}
	log.Info("dataset loaded",
		zap.String("input", input),
		zap.Int("rows", len(rows)),
		zap.Int("workers", EffectiveWorkers(j.Options.Workers)))

	var runID string
	if j.Sink != nil {
		if runID, err = j.Sink.Begin(ctx, input, len(rows)); err != nil {
			log.Warn("run not recorded", zap.Error(err))
		}
	}

	start := time.Now()
	results, stats := Run(ctx, rows, j.Predictor, j.Options)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("batch interrupted after %d/%d rows: %w", stats.Done, stats.Total, err)
	}
	if err := WriteOutput(output, results); err != nil {
		return stats, err
	}
	log.Info("batch finished",
		zap.String("output", output),
		zap.Int("measured", stats.Measured),
		zap.Int("empty", stats.Empty),
		zap.Int("invalid", stats.Invalid),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", time.Since(start)))

	if runID != "" {
		// the run is recorded even if the caller's context ends now
		sctx := context.WithoutCancel(ctx)
		if err := j.Sink.Save(sctx, runID, results); err != nil {
			log.Warn("predictions not recorded", zap.String("run", runID), zap.Error(err))
		}
		if err := j.Sink.Finish(sctx, runID, output, stats); err != nil {
			log.Warn("run not finalized", zap.String("run", runID), zap.Error(err))
		}
	}
	return stats, nil
}
