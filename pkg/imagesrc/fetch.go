package imagesrc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

var (
	// ErrFetch wraps failures to retrieve image bytes.
	ErrFetch = errors.New("fetch image")
	// ErrDecode wraps failures to decode retrieved bytes as an image.
	ErrDecode = errors.New("decode image")
)

// DefaultMaxBytes bounds a single downloaded image.
const DefaultMaxBytes = 20 << 20

// Fetcher retrieves and decodes images from http(s) URLs, file:// URLs or
// local paths.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
	// BaseDir resolves relative local paths; empty means the working directory.
	BaseDir string
}

// NewFetcher returns a Fetcher with an http client using timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch retrieves link and decodes it, applying EXIF orientation.
func (f *Fetcher) Fetch(ctx context.Context, link string) (image.Image, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, fmt.Errorf("%w: empty link", ErrFetch)
	}
	rc, err := f.open(ctx, link)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, link, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, link, limit)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, link, err)
	}
	return img, nil
}

func (f *Fetcher) open(ctx context.Context, link string) (io.ReadCloser, error) {
	u, err := url.Parse(link)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.get(ctx, link)
		case "file":
			return f.openFile(u.Path)
		}
	}
	return f.openFile(link)
}

func (f *Fetcher) get(ctx context.Context, link string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, link, resp.Status)
	}
	return resp.Body, nil
}

func (f *Fetcher) openFile(path string) (io.ReadCloser, error) {
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}
	fh, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return fh, nil
}
