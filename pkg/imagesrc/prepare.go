package imagesrc

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PrepareOptions controls the preprocessing applied before OCR.
type PrepareOptions struct {
	// Images shorter than MinHeight are upscaled to TargetHeight.
	MinHeight    int
	TargetHeight int
	// Contrast in percent (-100..100), 0 disables.
	Contrast float64
	// Sharpen sigma, 0 disables.
	Sharpen float64
	// Threshold binarizes with a global cut (1..255), 0 disables.
	Threshold uint8
	// AdaptiveWindow binarizes against the local mean of a square window,
	// 0 disables. AdaptiveBias is subtracted from the mean.
	AdaptiveWindow int
	AdaptiveBias   int
}

// DefaultPrepareOptions upscales small product shots; no binarization.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{MinHeight: 800, TargetHeight: 1200}
}

// Prepare converts img to grayscale and applies the configured steps.
func Prepare(img image.Image, o PrepareOptions) *image.NRGBA {
	out := imaging.Grayscale(img)
	if o.MinHeight > 0 && o.TargetHeight > 0 && out.Bounds().Dy() < o.MinHeight {
		out = imaging.Resize(out, 0, o.TargetHeight, imaging.Lanczos)
	}
	if o.Contrast != 0 {
		out = imaging.AdjustContrast(out, o.Contrast)
	}
	if o.Sharpen > 0 {
		out = imaging.Sharpen(out, o.Sharpen)
	}
	switch {
	case o.AdaptiveWindow > 0:
		out = adaptiveThreshold(out, o.AdaptiveWindow, o.AdaptiveBias)
	case o.Threshold > 0:
		out = binarize(out, o.Threshold)
	}
	return out
}

func luma(img *image.NRGBA, x, y int) int {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return (int(p[0]) + int(p[1]) + int(p[2])) / 3
}

func paint(img *image.NRGBA, x, y int, black bool) {
	c := color.NRGBA{255, 255, 255, 255}
	if black {
		c = color.NRGBA{0, 0, 0, 255}
	}
	img.SetNRGBA(x, y, c)
}

// binarize maps pixels at or below threshold to black, the rest to white.
func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			paint(out, x, y, luma(img, x, y) <= int(threshold))
		}
	}
	return out
}

// adaptiveThreshold marks a pixel black when it is darker than the mean of
// its window minus bias. Window sums come from a summed-area table.
func adaptiveThreshold(img *image.NRGBA, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	// sat has a zero row and column so lookups need no edge cases.
	sat := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += luma(img, b.Min.X+x, b.Min.Y+y)
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
		}
	}
	half := window / 2
	out := image.NewNRGBA(b)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			mean := sum / ((x1 - x0) * (y1 - y0))
			th := max(mean-bias, 0)
			paint(out, b.Min.X+x, b.Min.Y+y, luma(img, b.Min.X+x, b.Min.Y+y) < th)
		}
	}
	return out
}
