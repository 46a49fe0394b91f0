package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/predict"
)

// Predictor evaluates one image link for one entity type.
type Predictor interface {
	Evaluate(ctx context.Context, link, entity string) predict.Outcome
}

// Options configures Run.
type Options struct {
	// Workers bounds concurrent rows; <= 0 means runtime.NumCPU().
	Workers int
	// Progress, when set, is called once per row, including rows skipped
	// after cancellation. It may be called from several goroutines at once.
	Progress func(Stats)
	Logger   *zap.Logger
}

// Stats counts finished rows by outcome.
type Stats struct {
	Total    int
	Done     int
	Measured int
	Empty    int
	Invalid  int
	Failed   int
}

type counters struct {
	total    int64
	done     atomic.Int64
	measured atomic.Int64
	empty    atomic.Int64
	invalid  atomic.Int64
	failed   atomic.Int64
}

func (c *counters) add(kind string) Stats {
	switch kind {
	case metrics.OutcomeMeasured:
		c.measured.Add(1)
	case metrics.OutcomeInvalidEntity:
		c.invalid.Add(1)
	case metrics.OutcomeFailed:
		c.failed.Add(1)
	default:
		c.empty.Add(1)
	}
	c.done.Add(1)
	return c.snapshot()
}

func (c *counters) snapshot() Stats {
	return Stats{
		Total:    int(c.total),
		Done:     int(c.done.Load()),
		Measured: int(c.measured.Load()),
		Empty:    int(c.empty.Load()),
		Invalid:  int(c.invalid.Load()),
		Failed:   int(c.failed.Load()),
	}
}

// EffectiveWorkers resolves the worker count.
func EffectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

// Run predicts every row. Results keep the input order. A failing or
// panicking row yields an empty prediction and never stops the others; rows
// not started before ctx is cancelled are marked failed.
func Run(ctx context.Context, rows []Row, p Predictor, o Options) ([]Result, Stats) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]Result, len(rows))
	c := &counters{total: int64(len(rows))}

	finish := func(kind string) {
		s := c.add(kind)
		if o.Progress != nil {
			o.Progress(s)
		}
	}

	var g errgroup.Group
	g.SetLimit(EffectiveWorkers(o.Workers))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Row: row, Kind: metrics.OutcomeFailed, Reason: err.Error()}
			finish(metrics.OutcomeFailed)
			continue
		}
		g.Go(func() error {
			results[i] = evaluate(ctx, p, row, log)
			finish(results[i].Kind)
			return nil
		})
	}
	_ = g.Wait()
	return results, c.snapshot()
}

func evaluate(ctx context.Context, p Predictor, row Row, log *zap.Logger) (res Result) {
	res.Row = row
	defer func() {
		if r := recover(); r != nil {
			log.Error("row panicked", zap.String("index", row.Index), zap.Any("panic", r))
			res.Prediction = ""
			res.Kind = metrics.OutcomeFailed
			res.Reason = fmt.Sprintf("panic: %v", r)
		}
	}()
	out := p.Evaluate(ctx, row.ImageLink, row.EntityName)
	res.Prediction = out.Prediction
	res.Kind = out.Kind()
	if out.Err != nil {
		res.Reason = out.Err.Error()
	}
	return res
}
