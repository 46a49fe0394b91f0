package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/disintegration/imaging"

	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/ocr"
	"imgmeasure/pkg/predict"
)

// Saves the preprocessed image for a link so preprocessing settings can be
// tuned by eye, and optionally runs OCR on it.
func main() {
	in := flag.String("in", "", "image link or path")
	out := flag.String("out", "/tmp/prepared.png", "where to save the prepared image")
	contrast := flag.Float64("contrast", 0, "contrast percent")
	sharpen := flag.Float64("sharpen", 0, "sharpen sigma")
	threshold := flag.Uint("threshold", 0, "global binarize threshold (0 disables)")
	window := flag.Int("adaptive", 0, "adaptive threshold window (0 disables)")
	bias := flag.Int("bias", 10, "adaptive threshold bias")
	runOCR := flag.Bool("ocr", false, "recognize the prepared image")
	entity := flag.String("entity", "", "with -ocr, also print the prediction for this entity")
	flag.Parse()
	if *in == "" {
		log.Fatal("usage: debug_prepare -in <image> [-out file.png] [-ocr -entity width]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	img, err := imagesrc.NewFetcher(30*time.Second).Fetch(ctx, *in)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	opts := imagesrc.DefaultPrepareOptions()
	opts.Contrast = *contrast
	opts.Sharpen = *sharpen
	opts.Threshold = uint8(min(*threshold, 255))
	opts.AdaptiveWindow = *window
	opts.AdaptiveBias = *bias
	prepared := imagesrc.Prepare(img, opts)
	if err := imaging.Save(prepared, *out); err != nil {
		log.Fatalf("save: %v", err)
	}
	b := prepared.Bounds()
	fmt.Printf("saved %s (%dx%d)\n", *out, b.Dx(), b.Dy())

	if !*runOCR {
		return
	}
	text, err := ocr.NewTesseract().Recognize(ctx, prepared)
	if err != nil {
		log.Fatalf("ocr: %v", err)
	}
	fmt.Printf("text=%q\n", text)
	if *entity != "" {
		fmt.Printf("prediction=%q\n", predict.Extract(text, *entity))
	}
}
