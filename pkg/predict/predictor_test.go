package predict

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmeasure/pkg/cache"
	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/ocr"
)

type fakeFetcher struct {
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, link string) (image.Image, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, fmt.Errorf("%w: %s", f.err, link)
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakeRecognizer struct {
	text      string
	err       error
	panicWith any
	delay     time.Duration
	gate      chan struct{}
	calls     atomic.Int32
}

func (r *fakeRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	r.calls.Add(1)
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.text, r.err
}

var noPrepare = &imagesrc.PrepareOptions{}

func TestExtract(t *testing.T) {
	tests := []struct {
		raw, entity, want string
	}{
		{"Item is 12 cm wide\nand 5 cm deep", "width", "12.0 centimetre"},
		{"Weighs 2kg or 2500 g", "item_weight", "2500.0 gram"},
		{"NET WT 16 OZ (1 LB)", "item_weight", "16.0 ounce"},
		{"Input: 220V  output 12 v", "voltage", "220.0 volt"},
		{"1.5 L bottle 500 ml", "item_volume", "500.0 millilitre"},
		{"12 cm", "colour", InvalidEntityPrediction},
		{"no numbers", "width", ""},
		{"2 kg, 500 gélules", "item_weight", "2.0 kilogram"},
		{"Poids ٣٥ g", "item_weight", "35.0 gram"},
		{"", "width", ""},
		{"", "colour", InvalidEntityPrediction},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Extract(tt.raw, tt.entity), "%q / %s", tt.raw, tt.entity)
	}
}

func TestPredict(t *testing.T) {
	p := New(&fakeFetcher{}, &fakeRecognizer{text: "Width 30 CM\nHeight 45cm"}, Options{Prepare: noPrepare})
	assert.Equal(t, "45.0 centimetre", p.Predict(context.Background(), "http://x/a.jpg", "width"))
	assert.Equal(t, InvalidEntityPrediction, p.Predict(context.Background(), "http://x/a.jpg", "shape"))
}

func TestPredictFailureEqualsEmptyText(t *testing.T) {
	m := metrics.New()
	fetchFail := New(&fakeFetcher{err: imagesrc.ErrFetch}, &fakeRecognizer{text: "12 cm"}, Options{Metrics: m})
	ocrFail := New(&fakeFetcher{}, &fakeRecognizer{err: ocr.ErrRecognize}, Options{Prepare: noPrepare})

	for _, entity := range []string{"width", "item_weight", "nope"} {
		want := Extract("", entity)
		out := fetchFail.Evaluate(context.Background(), "http://x/missing.jpg", entity)
		assert.Equal(t, want, out.Prediction)
		assert.ErrorIs(t, out.Err, imagesrc.ErrFetch)
		assert.Equal(t, metrics.OutcomeFailed, out.Kind())

		out = ocrFail.Evaluate(context.Background(), "http://x/a.jpg", entity)
		assert.Equal(t, want, out.Prediction)
		assert.ErrorIs(t, out.Err, ocr.ErrRecognize)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rows.WithLabelValues(metrics.OutcomeFailed)))
}

func TestPredictCachesSuccessOnly(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	r := &fakeRecognizer{text: "2 kg"}
	c := cache.NewMemory(0)
	m := metrics.New()
	p := New(f, r, Options{Prepare: noPrepare, Cache: c, Metrics: m})

	assert.Equal(t, "2.0 kilogram", p.Predict(ctx, "a", "item_weight"))
	assert.Equal(t, "2.0 kilogram", p.Predict(ctx, "a", "item_weight"))
	assert.EqualValues(t, 1, f.calls.Load())
	assert.EqualValues(t, 1, r.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookup.WithLabelValues("hit")))

	failing := New(&fakeFetcher{err: imagesrc.ErrDecode}, r, Options{Cache: c})
	failing.Predict(ctx, "b", "item_weight")
	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestPredictSharesConcurrentRecognition(t *testing.T) {
	f := &fakeFetcher{}
	r := &fakeRecognizer{text: "3 watt", gate: make(chan struct{})}
	p := New(f, r, Options{Prepare: noPrepare})

	const n = 8
	var wg sync.WaitGroup
	got := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = p.Predict(context.Background(), "same", "wattage")
		}()
	}
	// let the callers pile up on the in-flight call
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	for _, s := range got {
		assert.Equal(t, "3.0 watt", s)
	}
	assert.LessOrEqual(t, r.calls.Load(), int32(n))
	assert.Less(t, f.calls.Load(), int32(n))
}

func TestPredictTimeout(t *testing.T) {
	r := &fakeRecognizer{text: "9 cm", delay: time.Second}
	p := New(&fakeFetcher{}, r, Options{Prepare: noPrepare, Timeout: 30 * time.Millisecond})

	start := time.Now()
	out := p.Evaluate(context.Background(), "slow", "width")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "", out.Prediction)
	assert.True(t, errors.Is(out.Err, context.DeadlineExceeded))
	assert.ErrorIs(t, out.Err, ocr.ErrRecognize)
}

func TestPredictRecoversEnginePanic(t *testing.T) {
	ctx := context.Background()
	r := &fakeRecognizer{panicWith: "leptonica abort"}
	p := New(&fakeFetcher{}, r, Options{Prepare: noPrepare, Engines: 1})

	out := p.Evaluate(ctx, "a", "width")
	assert.Equal(t, "", out.Prediction)
	assert.ErrorIs(t, out.Err, ocr.ErrRecognize)
	assert.Contains(t, out.Err.Error(), "leptonica abort")

	// the only engine slot was released by the panicking call
	r.panicWith = nil
	r.text = "4 cm"
	assert.Equal(t, "4.0 centimetre", p.Predict(ctx, "b", "width"))
}

func TestPredictBoundsAbandonedEngines(t *testing.T) {
	ctx := context.Background()
	r := &fakeRecognizer{text: "6 cm", gate: make(chan struct{})}
	p := New(&fakeFetcher{}, r, Options{Prepare: noPrepare, Timeout: 30 * time.Millisecond, Engines: 1})

	out := p.Evaluate(ctx, "first", "width")
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)

	// the first engine is still running, so this one never starts
	out = p.Evaluate(ctx, "second", "width")
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.ErrorIs(t, out.Err, ocr.ErrRecognize)
	assert.Contains(t, out.Err.Error(), "waiting for engine")
	assert.EqualValues(t, 1, r.calls.Load())

	close(r.gate)
	assert.Eventually(t, func() bool {
		return p.Predict(ctx, "third", "width") == "6.0 centimetre"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutcomeKind(t *testing.T) {
	assert.Equal(t, metrics.OutcomeMeasured, Outcome{Prediction: "1.0 volt"}.Kind())
	assert.Equal(t, metrics.OutcomeEmpty, Outcome{}.Kind())
	assert.Equal(t, metrics.OutcomeInvalidEntity, Outcome{Prediction: InvalidEntityPrediction}.Kind())
	assert.Equal(t, metrics.OutcomeFailed, Outcome{Err: imagesrc.ErrFetch}.Kind())
}
