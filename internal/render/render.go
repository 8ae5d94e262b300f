// Package render fetches template pages and extracts caption geometry from
// the rendered DOM.
package render

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnavailable indicates rendering infrastructure could not produce a
// usable document for the page. Callers treat this as an item failure, not
// a run failure.
var ErrUnavailable = errors.New("page rendering unavailable")

const defaultUserAgent = "Mozilla/5.0 (compatible; meme-harvester/1.0; +https://example.com/bot)"

// WaitSelectors are the elements whose presence signals the generator page
// has the preview markup we extract from.
var WaitSelectors = []string{".m-preview", ".mm-img", "canvas.mm-canv"}

// Renderer produces a parsed document for a page, waiting up to timeout for
// any of waitSelectors to be present.
type Renderer interface {
	Render(url string, waitSelectors []string, timeout time.Duration) (*goquery.Document, error)
}

// StaticRenderer fetches pages over plain HTTP and parses the static HTML.
// Pages that only materialize the preview markup under JavaScript are
// reported as ErrUnavailable, matching the contract of a missing headless
// browser rather than failing the run.
type StaticRenderer struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewStaticRenderer creates a renderer with a 30s HTTP timeout.
func NewStaticRenderer() *StaticRenderer {
	return &StaticRenderer{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: defaultUserAgent,
	}
}

// Render implements Renderer.
func (r *StaticRenderer) Render(url string, waitSelectors []string, timeout time.Duration) (*goquery.Document, error) {
	client := r.HTTPClient
	if timeout > 0 {
		c := *client
		c.Timeout = timeout
		client = &c
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	if len(waitSelectors) > 0 && !anySelectorPresent(doc, waitSelectors) {
		return nil, fmt.Errorf("%w: none of %s present in static HTML for %s",
			ErrUnavailable, strings.Join(waitSelectors, ","), url)
	}

	return doc, nil
}

func anySelectorPresent(doc *goquery.Document, selectors []string) bool {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
