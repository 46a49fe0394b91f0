package predict

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"imgmeasure/pkg/cache"
	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/ocr"
	"imgmeasure/pkg/units"
)

// DefaultTimeout bounds fetch plus recognition of one image.
const DefaultTimeout = 60 * time.Second

// Fetcher loads and decodes an image by link.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (image.Image, error)
}

// Recognizer extracts text from a decoded image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Options tunes a Predictor. Zero values pick the defaults.
type Options struct {
	Prepare *imagesrc.PrepareOptions
	Timeout time.Duration
	Cache   cache.TextCache
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Engines bounds recognitions running at once, including ones whose
	// caller already timed out; <= 0 means runtime.NumCPU().
	Engines int
}

// Outcome is one prediction with the text it was derived from. Err is the
// recovered fetch or recognition failure, if any; Prediction is still set.
type Outcome struct {
	Prediction string
	Text       string
	Err        error
}

// Kind classifies the outcome with the metrics outcome labels.
func (o Outcome) Kind() string {
	switch {
	case o.Err != nil:
		return metrics.OutcomeFailed
	case o.Prediction == InvalidEntityPrediction:
		return metrics.OutcomeInvalidEntity
	case o.Prediction == "":
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeMeasured
	}
}

// Predictor is safe for concurrent use. Concurrent calls for the same link
// share one fetch and recognition.
type Predictor struct {
	fetcher    Fetcher
	recognizer Recognizer
	prepare    imagesrc.PrepareOptions
	timeout    time.Duration
	cache      cache.TextCache
	log        *zap.Logger
	metrics    *metrics.Metrics
	group      singleflight.Group
	engines    chan struct{}
}

func New(f Fetcher, r Recognizer, o Options) *Predictor {
	p := &Predictor{
		fetcher:    f,
		recognizer: r,
		prepare:    imagesrc.DefaultPrepareOptions(),
		timeout:    o.Timeout,
		cache:      o.Cache,
		log:        o.Logger,
		metrics:    o.Metrics,
	}
	if o.Prepare != nil {
		p.prepare = *o.Prepare
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.cache == nil {
		p.cache = cache.Nop{}
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	n := o.Engines
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.engines = make(chan struct{}, n)
	return p
}

// Predict returns the measurement string for one image. Failures to fetch or
// recognize are logged and yield the prediction for empty text.
func (p *Predictor) Predict(ctx context.Context, link, entity string) string {
	return p.Evaluate(ctx, link, entity).Prediction
}

// Evaluate is Predict with the recognized text and recovered error kept.
func (p *Predictor) Evaluate(ctx context.Context, link, entity string) Outcome {
	text, err := p.RecognizedText(ctx, link)
	if err != nil {
		p.log.Warn("text recognition failed",
			zap.String("link", link), zap.String("entity", entity), zap.Error(err))
		text = ""
	}
	out := Outcome{Prediction: Extract(text, entity), Text: text, Err: err}
	p.metrics.ObserveRow(out.Kind())
	p.log.Debug("prediction",
		zap.String("link", link),
		zap.String("entity", entity),
		zap.String("text", units.Snippet(units.Clean(text), 120)),
		zap.String("prediction", out.Prediction))
	return out
}

// RecognizedText returns the raw text for a link, from the cache when
// possible.
func (p *Predictor) RecognizedText(ctx context.Context, link string) (string, error) {
	if text, ok := p.cache.Get(ctx, link); ok {
		p.metrics.ObserveCache(true)
		return text, nil
	}
	p.metrics.ObserveCache(false)

	v, err, shared := p.group.Do(link, func() (any, error) {
		return p.recognize(ctx, link)
	})
	if shared {
		p.log.Debug("shared recognition", zap.String("link", link))
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Predictor) recognize(ctx context.Context, link string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	img, err := p.fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	text, err := p.recognizeAsync(ctx, imagesrc.Prepare(img, p.prepare))
	p.metrics.ObserveOCR(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	p.cache.Set(context.WithoutCancel(ctx), link, text)
	return text, nil
}

// recognizeAsync returns as soon as ctx is done even if the engine does not
// observe cancellation. The engine slot is held until Recognize returns, and
// a panicking engine is reported as ErrRecognize.
func (p *Predictor) recognizeAsync(ctx context.Context, img image.Image) (string, error) {
	select {
	case p.engines <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for engine: %w", ocr.ErrRecognize, ctx.Err())
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-p.engines }()
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: engine panic: %v", ocr.ErrRecognize, r)}
			}
		}()
		text, err := p.recognizer.Recognize(ctx, img)
		ch <- result{text, err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ocr.ErrRecognize, ctx.Err())
	}
}
