package positions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/meme-metadata/harvester/internal/geometry"
	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/render"
	"github.com/meme-metadata/harvester/internal/retry"
)

const previewHTML = `<html><body>
<div class="m-preview" style="width: 600px;">
  <img class="mm-img" src="https://i.imgflip.com/30b1gx.jpg"/>
  <canvas class="mm-canv" width="600" height="314"></canvas>
  <div class="drag-box off" style="left: 5px; top: 10px; width: 50px; height: 15px;"></div>
  <div class="drag-box off" style="left: 100px; top: 200px; width: 80px; height: 40px;"></div>
</div>
</body></html>`

type fakeRenderer struct {
	html     string
	err      error
	failures int

	calls int
}

func (f *fakeRenderer) Render(url string, waitSelectors []string, timeout time.Duration) (*goquery.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, errors.New("transient render failure")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

type fakeFetcher struct {
	width    int
	err      error
	failures int

	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, int, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, 0, f.err
	}
	if f.calls <= f.failures {
		return nil, 0, 0, errors.New("transient fetch failure")
	}
	return []byte("jpegbytes"), f.width, 628, nil
}

func noSleep() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
}

func pendingRecord(regions int) *meme.Record {
	rec := &meme.Record{
		Name:   "Drake-Hotline-Bling",
		URL:    "https://imgflip.com/memegenerator/Drake-Hotline-Bling",
		Width:  1200,
		Height: 628,
	}
	for i := 0; i < regions; i++ {
		rec.TextOptions = append(rec.TextOptions, meme.TextRegion{
			Position: meme.Box{Left: 5, Top: 10, Width: 50, Height: 15},
		})
	}
	return rec
}

func TestProcessRescalesRegions(t *testing.T) {
	proc := &Processor{
		Renderer: &fakeRenderer{html: previewHTML},
		Fetcher:  &fakeFetcher{width: 1200},
	}

	rec := pendingRecord(2)
	updated, err := proc.Process(context.Background(), "Drake-Hotline-Bling", rec)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// 1200 original / 600 preview = ratio 2.
	want := []meme.Box{
		{Left: 10, Top: 20, Width: 100, Height: 30},
		{Left: 200, Top: 400, Width: 160, Height: 80},
	}
	for i, w := range want {
		got := updated.TextOptions[i].UpdatedPosition
		if got == nil {
			t.Fatalf("region %d has no updated position", i)
		}
		if *got != w {
			t.Errorf("region %d: expected %+v, got %+v", i, w, *got)
		}
	}
	if !updated.HasUpdatedPositions {
		t.Error("completion marker not set after successful rescale")
	}
	if updated.TextOptions[0].Position != (meme.Box{Left: 5, Top: 10, Width: 50, Height: 15}) {
		t.Error("original position must be preserved")
	}
}

func TestProcessRetriesTransientRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{html: previewHTML, failures: 1}
	proc := &Processor{
		Renderer: renderer,
		Fetcher:  &fakeFetcher{width: 1200},
		Retry:    noSleep(),
	}

	rec := pendingRecord(1)
	updated, err := proc.Process(context.Background(), "Drake-Hotline-Bling", rec)
	if err != nil {
		t.Fatalf("expected success after transient render failure: %v", err)
	}
	if renderer.calls != 2 {
		t.Errorf("expected 2 render attempts, got %d", renderer.calls)
	}
	if !updated.HasUpdatedPositions {
		t.Error("completion marker not set after retried success")
	}
}

func TestProcessRetriesTransientFetchFailure(t *testing.T) {
	renderer := &fakeRenderer{html: previewHTML}
	fetcher := &fakeFetcher{width: 1200, failures: 1}
	proc := &Processor{
		Renderer: renderer,
		Fetcher:  fetcher,
		Retry:    noSleep(),
	}

	if _, err := proc.Process(context.Background(), "Drake-Hotline-Bling", pendingRecord(1)); err != nil {
		t.Fatalf("expected success after transient fetch failure: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected 2 fetch attempts, got %d", fetcher.calls)
	}
	if renderer.calls != 1 {
		t.Errorf("fetch retry must not re-render, got %d render attempts", renderer.calls)
	}
}

func TestProcessFailsAfterExhaustedRenderRetries(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("503")}
	proc := &Processor{
		Renderer: renderer,
		Fetcher:  &fakeFetcher{width: 1200},
		Retry:    noSleep(),
	}

	rec := pendingRecord(1)
	if _, err := proc.Process(context.Background(), "Drake-Hotline-Bling", rec); err == nil {
		t.Fatal("expected error after exhausting render retries")
	}
	if renderer.calls != 3 {
		t.Errorf("expected 3 render attempts, got %d", renderer.calls)
	}
	if rec.HasUpdatedPositions {
		t.Error("completion marker must not be set on failure")
	}
}

func TestProcessRenderFailure(t *testing.T) {
	proc := &Processor{
		Renderer: &fakeRenderer{err: render.ErrUnavailable},
		Fetcher:  &fakeFetcher{width: 1200},
	}

	rec := pendingRecord(1)
	_, err := proc.Process(context.Background(), "Drake-Hotline-Bling", rec)
	if !errors.Is(err, render.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if rec.HasUpdatedPositions {
		t.Error("completion marker must not be set on failure")
	}
}

func TestProcessFetchFailure(t *testing.T) {
	proc := &Processor{
		Renderer: &fakeRenderer{html: previewHTML},
		Fetcher:  &fakeFetcher{err: errors.New("connection reset")},
	}

	if _, err := proc.Process(context.Background(), "Drake-Hotline-Bling", pendingRecord(1)); err == nil {
		t.Fatal("expected error when the original image cannot be fetched")
	}
}

func TestProcessMissingPreviewWidth(t *testing.T) {
	html := `<div class="m-preview">
	  <img class="mm-img" src="https://i.imgflip.com/30b1gx.jpg"/>
	</div>`
	proc := &Processor{
		Renderer: &fakeRenderer{html: html},
		Fetcher:  &fakeFetcher{width: 1200},
	}

	_, err := proc.Process(context.Background(), "Drake-Hotline-Bling", pendingRecord(1))
	if !errors.Is(err, geometry.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestProcessMoreRegionsThanBoxes(t *testing.T) {
	proc := &Processor{
		Renderer: &fakeRenderer{html: previewHTML},
		Fetcher:  &fakeFetcher{width: 1200},
	}

	// The page shows two drag boxes but the record carries three regions.
	rec := pendingRecord(3)
	updated, err := proc.Process(context.Background(), "Drake-Hotline-Bling", rec)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if updated.TextOptions[2].UpdatedPosition != nil {
		t.Error("region without a matching box must stay untouched")
	}
	if !updated.HasUpdatedPositions {
		t.Error("completion marker must still be set")
	}
}

func TestPending(t *testing.T) {
	proc := &Processor{}

	rec := &meme.Record{}
	if !proc.Pending(rec) {
		t.Error("record without updated positions must be pending")
	}

	rec.HasUpdatedPositions = true
	if proc.Pending(rec) {
		t.Error("completed record must not be pending")
	}
}
