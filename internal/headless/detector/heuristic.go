// Package detector decides when a page fetched over plain HTTP is a script
// shell whose text only appears after rendering, and re-fetches such pages
// through a headless browser.
package detector

import (
	"bytes"
	"net/http"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	"github.com/JakeFAU/datasetcrawler/internal/extract"
)

// DefaultMinTextBytes is the visible-text size below which a script-heavy
// page is considered unrendered.
const DefaultMinTextBytes = 2048

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	MinTextBytes int
}

// NewHeuristic creates a detector. A non-positive threshold selects
// DefaultMinTextBytes.
func NewHeuristic(minTextBytes int) *Heuristic {
	if minTextBytes <= 0 {
		minTextBytes = DefaultMinTextBytes
	}
	return &Heuristic{MinTextBytes: minTextBytes}
}

var spaMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version="),
}

// ShouldPromote reports whether page needs a headless render. Only
// successful responses qualify; error pages are never re-fetched.
func (h *Heuristic) ShouldPromote(page crawler.Page) bool {
	if page.Headless || page.StatusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return true
	}

	text, err := extract.Text(page.Body)
	if err != nil {
		return false
	}
	if len(text) >= h.MinTextBytes {
		return false
	}
	if scriptShare(page.Body) >= 25 {
		return true
	}
	lower := bytes.ToLower(page.Body)
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body bytes inside script elements.
func scriptShare(body []byte) int {
	lower := bytes.ToLower(body)
	total := len(lower)
	if total == 0 {
		return 0
	}

	var (
		openTag  = []byte("<script")
		closeTag = []byte("</script>")
	)
	covered := 0
	pos := 0
	for pos < total {
		rel := bytes.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := total
		if closeRel := bytes.Index(lower[start:], closeTag); closeRel != -1 {
			end = start + closeRel + len(closeTag)
		}
		covered += end - start
		pos = end
	}
	return covered * 100 / total
}
