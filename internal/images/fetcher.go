// Package images downloads template images and probes their dimensions.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher retrieves original template images over HTTP.
type Fetcher struct {
	HTTPClient *http.Client
	UserAgent  string
	Referer    string
}

// NewFetcher creates an image fetcher with a 60s timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		UserAgent: "Mozilla/5.0 (compatible; meme-harvester/1.0; +https://example.com/bot)",
		Referer:   "https://imgflip.com/",
	}
}

// Fetch downloads the image at url and returns its bytes along with the
// decoded pixel width and height.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	if f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to download image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, 0, fmt.Errorf("image %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read image data from %s: %w", url, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image %s: %w", url, err)
	}

	return data, cfg.Width, cfg.Height, nil
}

// MimeType guesses the mime type from a filename extension, defaulting to
// image/jpeg.
func MimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t := mime.TypeByExtension(ext); t != "" && strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
