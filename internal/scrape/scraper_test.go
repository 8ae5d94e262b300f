package scrape

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/store"
)

const listingHTML = `<html><body>
<div class="mt-box">
  <a class="mt-caption" href="/memegenerator/Drake-Hotline-Bling">Add Caption</a>
  <a class="mt-caption" href="/memegenerator/Two-Buttons">Add Caption</a>
  <a class="mt-caption" href="/memegenerator/Drake-Hotline-Bling">Add Caption</a>
  <a class="mt-caption" href="/about">Add Caption</a>
</div>
</body></html>`

const generatorHTML = `<html><body>
<div class="m-preview" style="width: 600px;">
  <img class="mm-img" src="https://i.imgflip.com/30b1gx.jpg"/>
  <canvas class="mm-canv" width="600" height="314"></canvas>
  <div class="drag-box off" style="left: 5px; top: 10px; width: 50px; height: 15px;"></div>
</div>
</body></html>`

// pageRenderer serves canned HTML per URL; empty string means a page with no
// caption links.
type pageRenderer struct {
	pages map[string]string
	errs  map[string]error
}

func (r *pageRenderer) Render(url string, waitSelectors []string, timeout time.Duration) (*goquery.Document, error) {
	if err := r.errs[url]; err != nil {
		return nil, err
	}
	html, ok := r.pages[url]
	if !ok {
		html = `<html><body></body></html>`
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, int, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, 0, f.err
	}
	return []byte("jpegbytes"), 1200, 628, nil
}

func newScraper(t *testing.T, renderer *pageRenderer, fetcher *countingFetcher) *Scraper {
	t.Helper()
	dir := t.TempDir()
	return &Scraper{
		Renderer:  renderer,
		Fetcher:   fetcher,
		Store:     store.New(filepath.Join(dir, "memes.json")),
		StartURL:  "https://imgflip.com/memetemplates?sort=top-all-time",
		ImagesDir: filepath.Join(dir, "images"),
	}
}

func TestRunScrapesNewTemplates(t *testing.T) {
	renderer := &pageRenderer{pages: map[string]string{
		"https://imgflip.com/memetemplates?sort=top-all-time":        listingHTML,
		"https://imgflip.com/memegenerator/Drake-Hotline-Bling":      generatorHTML,
		"https://imgflip.com/memegenerator/Two-Buttons":              generatorHTML,
		"https://imgflip.com/memetemplates?sort=top-all-time&page=2": "",
	}}
	fetcher := &countingFetcher{}
	s := newScraper(t, renderer, fetcher)

	if err := s.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records, err := s.Store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	rec := records["Drake-Hotline-Bling"]
	if rec == nil {
		t.Fatal("expected Drake-Hotline-Bling record")
	}
	if rec.Width != 1200 || rec.Height != 628 {
		t.Errorf("expected original dimensions 1200x628, got %dx%d", rec.Width, rec.Height)
	}
	if rec.ImageNameFromSrc != "30b1gx" {
		t.Errorf("unexpected image stem %q", rec.ImageNameFromSrc)
	}
	if len(rec.TextOptions) != 1 {
		t.Fatalf("expected 1 text region, got %d", len(rec.TextOptions))
	}
	// canvas 600x314 scaled to 1200x628: both axes double.
	got := rec.TextOptions[0].Position
	if got != (meme.Box{Left: 10, Top: 20, Width: 100, Height: 30}) {
		t.Errorf("unexpected scaled position %+v", got)
	}

	if _, err := os.Stat(filepath.Join(s.ImagesDir, rec.Filename)); err != nil {
		t.Errorf("image not saved: %v", err)
	}
}

func TestRunSkipsExistingRecords(t *testing.T) {
	renderer := &pageRenderer{pages: map[string]string{
		"https://imgflip.com/memetemplates?sort=top-all-time":   listingHTML,
		"https://imgflip.com/memegenerator/Two-Buttons":         generatorHTML,
		"https://imgflip.com/memegenerator/Drake-Hotline-Bling": generatorHTML,
	}}
	fetcher := &countingFetcher{}
	s := newScraper(t, renderer, fetcher)

	existing := meme.Collection{
		"Drake-Hotline-Bling": {Name: "Drake-Hotline-Bling", Width: 999},
	}
	if err := s.Store.Save(existing); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	if err := s.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records, err := s.Store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if records["Drake-Hotline-Bling"].Width != 999 {
		t.Error("existing record must not be rescraped")
	}
	if fetcher.calls != 1 {
		t.Errorf("expected one image fetch for the new template, got %d", fetcher.calls)
	}
}

func TestRunSkipsFailingTemplatePage(t *testing.T) {
	renderer := &pageRenderer{
		pages: map[string]string{
			"https://imgflip.com/memetemplates?sort=top-all-time": listingHTML,
			"https://imgflip.com/memegenerator/Two-Buttons":       generatorHTML,
		},
		errs: map[string]error{
			"https://imgflip.com/memegenerator/Drake-Hotline-Bling": errors.New("timeout"),
		},
	}
	s := newScraper(t, renderer, &countingFetcher{})

	if err := s.Run(context.Background(), 1); err != nil {
		t.Fatalf("per-template failures must not abort the run: %v", err)
	}

	records, err := s.Store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if _, ok := records["Two-Buttons"]; !ok {
		t.Error("surviving template missing from collection")
	}
}

func TestCollectGeneratorLinksPagination(t *testing.T) {
	page2 := strings.ReplaceAll(listingHTML, "Drake-Hotline-Bling", "Change-My-Mind")
	page2 = strings.ReplaceAll(page2, "Two-Buttons", "Distracted-Boyfriend")
	renderer := &pageRenderer{pages: map[string]string{
		"https://imgflip.com/memetemplates?sort=top-all-time":        listingHTML,
		"https://imgflip.com/memetemplates?sort=top-all-time&page=2": page2,
		"https://imgflip.com/memetemplates?sort=top-all-time&page=3": "",
	}}
	s := newScraper(t, renderer, &countingFetcher{})

	links, err := s.CollectGeneratorLinks(0)
	if err != nil {
		t.Fatalf("CollectGeneratorLinks failed: %v", err)
	}
	want := []string{
		"https://imgflip.com/memegenerator/Drake-Hotline-Bling",
		"https://imgflip.com/memegenerator/Two-Buttons",
		"https://imgflip.com/memegenerator/Change-My-Mind",
		"https://imgflip.com/memegenerator/Distracted-Boyfriend",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d: expected %s, got %s", i, want[i], links[i])
		}
	}
}

func TestCollectGeneratorLinksMaxPages(t *testing.T) {
	renderer := &pageRenderer{pages: map[string]string{
		"https://imgflip.com/memetemplates?sort=top-all-time": listingHTML,
	}}
	s := newScraper(t, renderer, &countingFetcher{})

	links, err := s.CollectGeneratorLinks(1)
	if err != nil {
		t.Fatalf("CollectGeneratorLinks failed: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("expected 2 links from a single page, got %d", len(links))
	}
}

func TestCollectGeneratorLinksFirstPageError(t *testing.T) {
	renderer := &pageRenderer{errs: map[string]error{
		"https://imgflip.com/memetemplates?sort=top-all-time": errors.New("503"),
	}}
	s := newScraper(t, renderer, &countingFetcher{})

	if _, err := s.CollectGeneratorLinks(0); err == nil {
		t.Fatal("expected error when the first listing page fails")
	}
}

func TestListingPageURL(t *testing.T) {
	tests := []struct {
		start string
		page  int
		want  string
	}{
		{"https://imgflip.com/memetemplates", 1, "https://imgflip.com/memetemplates"},
		{"https://imgflip.com/memetemplates", 2, "https://imgflip.com/memetemplates?page=2"},
		{"https://imgflip.com/memetemplates?sort=top-all-time", 3, "https://imgflip.com/memetemplates?sort=top-all-time&page=3"},
	}

	for _, tt := range tests {
		if got := listingPageURL(tt.start, tt.page); got != tt.want {
			t.Errorf("listingPageURL(%q, %d) = %q, expected %q", tt.start, tt.page, got, tt.want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Drake-Hotline-Bling", "Drake-Hotline-Bling"},
		{"Two Buttons", "Two-Buttons"},
		{"  spaced  ", "spaced"},
		{"weird/名前?.jpg", "weird.jpg"},
	}

	for _, tt := range tests {
		if got := SafeFilename(tt.in); got != tt.want {
			t.Errorf("SafeFilename(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		key      string
		imageURL string
		want     string
	}{
		{"Drake-Hotline-Bling", "https://i.imgflip.com/30b1gx.jpg", "Drake-Hotline-Bling.jpg"},
		{"Two-Buttons", "https://i.imgflip.com/1g8my4.png", "Two-Buttons.png"},
		{"No-Ext", "https://i.imgflip.com/raw", "No-Ext.jpg"},
		{"", "https://i.imgflip.com/a.gif", "image.gif"},
	}

	for _, tt := range tests {
		if got := imageFilename(tt.key, tt.imageURL); got != tt.want {
			t.Errorf("imageFilename(%q, %q) = %q, expected %q", tt.key, tt.imageURL, got, tt.want)
		}
	}
}
