package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/schollz/progressbar/v2"
	"go.uber.org/zap"

	"imgmeasure/pkg/cache"
	"imgmeasure/pkg/config"
	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/ocr"
	"imgmeasure/pkg/predict"
	"imgmeasure/process/batch"
)

// newTextCache picks the configured cache backend. The returned func
// releases it.
func newTextCache(ctx context.Context, cfg config.CacheConfig, log *zap.Logger) (cache.TextCache, func(), error) {
	switch cfg.Backend {
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.CacheMemory:
		return cache.NewMemory(cfg.TTL), func() {}, nil
	default:
		return cache.Nop{}, func() {}, nil
	}
}

// newPredictor wires fetcher, Tesseract, cache and metrics from cfg.
func newPredictor(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*predict.Predictor, func(), error) {
	tc, release, err := newTextCache(ctx, cfg.Cache, log)
	if err != nil {
		return nil, nil, fmt.Errorf("text cache: %w", err)
	}
	fetcher := imagesrc.NewFetcher(cfg.Fetch.Timeout)
	fetcher.MaxBytes = cfg.Fetch.MaxBytes
	fetcher.BaseDir = cfg.Dataset.Folder

	tess := ocr.NewTesseract(cfg.OCR.Languages...)
	tess.PageSeg = gosseract.PageSegMode(cfg.OCR.PageSeg)
	tess.Whitelist = cfg.OCR.Whitelist

	prep := cfg.Prepare.Options()
	p := predict.New(fetcher, tess, predict.Options{
		Prepare: &prep,
		Timeout: cfg.OCR.Timeout,
		Cache:   tc,
		Logger:  log,
		Metrics: m,
		Engines: batch.EffectiveWorkers(cfg.Batch.Workers),
	})
	return p, release, nil
}

// progress draws a terminal bar for one batch; the bar is created on the
// first finished row, once the total is known.
type progress struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	seen int
}

func (p *progress) update(s batch.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.New(s.Total)
	}
	_ = p.bar.Add(1)
	p.seen++
	if p.seen == s.Total {
		_ = p.bar.Finish()
		fmt.Println()
	}
}
