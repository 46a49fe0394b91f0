package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// ErrRecognize wraps Tesseract failures.
var ErrRecognize = errors.New("recognize text")

// DefaultLanguages are the Tesseract models used for product packaging text.
var DefaultLanguages = []string{"eng", "fra", "deu", "spa", "ita"}

// Tesseract recognizes text with a fresh gosseract client per call, so a
// single value is safe for concurrent use.
type Tesseract struct {
	Languages []string
	PageSeg   gosseract.PageSegMode
	// Whitelist restricts recognized characters when non-empty.
	Whitelist string
}

// NewTesseract returns a recognizer for languages with automatic page
// segmentation. Empty languages select DefaultLanguages.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Tesseract{Languages: languages, PageSeg: gosseract.PSM_AUTO}
}

// Recognize returns the raw text Tesseract reads from img.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognize, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("%w: encode png: %v", ErrRecognize, err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.Languages...); err != nil {
		return "", fmt.Errorf("%w: set language: %v", ErrRecognize, err)
	}
	if err := client.SetPageSegMode(t.PageSeg); err != nil {
		return "", fmt.Errorf("%w: set page segmentation: %v", ErrRecognize, err)
	}
	if t.Whitelist != "" {
		if err := client.SetWhitelist(t.Whitelist); err != nil {
			return "", fmt.Errorf("%w: set whitelist: %v", ErrRecognize, err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ErrRecognize, err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognize, err)
	}
	return text, nil
}
