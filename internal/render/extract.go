package render

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/meme-metadata/harvester/internal/geometry"
)

// PageData is the geometry extracted from one rendered generator page.
type PageData struct {
	Name         string
	ImageURL     string
	PreviewWidth float64
	CanvasWidth  int
	CanvasHeight int
	Boxes        []geometry.RawBox
}

var (
	pxRe           = regexp.MustCompile(`(-?\d+\.?\d*)px`)
	numberRe       = regexp.MustCompile(`(-?\d+\.?\d*)`)
	backgroundRe   = regexp.MustCompile(`url\(([^)]+)\)`)
	stylePropRes   = map[string]*regexp.Regexp{}
	stylePropNames = []string{"left", "top", "width", "height", "max-width"}
)

func init() {
	for _, name := range stylePropNames {
		stylePropRes[name] = regexp.MustCompile(name + `:\s*([^;]+)`)
	}
}

// ParsePx extracts a pixel length from a CSS value like "756.5px".
func ParsePx(value string) (float64, bool) {
	m := pxRe.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseDimension parses attribute values like "756", "756.6" or "756px"
// into an integer dimension.
func ParseDimension(value string) (int, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, false
	}
	if px, ok := ParsePx(s); ok {
		return int(math.Round(px)), true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(math.Round(f)), true
	}
	if m := numberRe.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

func styleProp(style, name string) (string, bool) {
	m := stylePropRes[name].FindStringSubmatch(style)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeURL resolves candidate against base and rejects data: and
// fragment-only links.
func NormalizeURL(base, candidate string) string {
	if candidate == "" {
		return ""
	}
	if strings.HasPrefix(candidate, "data:") || strings.HasPrefix(candidate, "#") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	abs := baseURL.ResolveReference(ref).String()
	if strings.HasPrefix(abs, "data:") || strings.HasPrefix(abs, "#") {
		return ""
	}
	return abs
}

// TemplateKey derives the stable template identifier from a generator URL
// (its last path segment).
func TemplateKey(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// ExtractPageData pulls the preview image URL, preview/canvas dimensions and
// caption drag-box geometry out of a rendered generator page.
func ExtractPageData(doc *goquery.Document, pageURL string) (*PageData, error) {
	preview := doc.Find("div.m-preview").First()
	if preview.Length() == 0 {
		return nil, fmt.Errorf("preview div .m-preview not found on %s", pageURL)
	}

	imgSrc, _ := preview.Find("img.mm-img").First().Attr("src")
	if imgSrc == "" {
		// Some pages set the image as a background on a div instead.
		if style, ok := preview.Find("div.mm-img").First().Attr("style"); ok {
			if m := backgroundRe.FindStringSubmatch(style); m != nil {
				imgSrc = strings.Trim(m[1], `"'`)
			}
		}
	}
	if imgSrc == "" {
		return nil, fmt.Errorf("could not locate preview image src on %s", pageURL)
	}

	imageURL := NormalizeURL(pageURL, imgSrc)
	if imageURL == "" {
		return nil, fmt.Errorf("preview image URL normalization failed for %q on %s", imgSrc, pageURL)
	}

	data := &PageData{
		Name:     TemplateKey(pageURL),
		ImageURL: imageURL,
	}

	canvas := preview.Find("canvas.mm-canv").First()
	if canvas.Length() > 0 {
		if w, ok := canvas.Attr("width"); ok {
			data.CanvasWidth, _ = ParseDimension(w)
		}
		if h, ok := canvas.Attr("height"); ok {
			data.CanvasHeight, _ = ParseDimension(h)
		}
	}

	if style, ok := preview.Attr("style"); ok {
		data.PreviewWidth = parsePreviewWidth(style)
	}

	preview.Find("div.drag-box.off").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		box, ok := parseBoxStyle(style)
		if !ok {
			return
		}
		data.Boxes = append(data.Boxes, box)
	})

	slog.Debug("Extracted page geometry",
		"page", pageURL,
		"preview_width", data.PreviewWidth,
		"canvas", fmt.Sprintf("%dx%d", data.CanvasWidth, data.CanvasHeight),
		"boxes", len(data.Boxes))

	return data, nil
}

// parsePreviewWidth prefers an explicit width, falling back to max-width.
func parsePreviewWidth(style string) float64 {
	if v, ok := styleProp(style, "width"); ok {
		if px, ok := ParsePx(v); ok {
			return px
		}
	}
	if v, ok := styleProp(style, "max-width"); ok {
		if px, ok := ParsePx(v); ok {
			return px
		}
	}
	return 0
}

func parseBoxStyle(style string) (geometry.RawBox, bool) {
	var box geometry.RawBox
	fields := []struct {
		name string
		dst  *float64
	}{
		{"left", &box.Left},
		{"top", &box.Top},
		{"width", &box.Width},
		{"height", &box.Height},
	}
	for _, f := range fields {
		v, ok := styleProp(style, f.name)
		if !ok {
			return box, false
		}
		px, ok := ParsePx(v)
		if !ok {
			return box, false
		}
		*f.dst = px
	}
	return box, true
}
