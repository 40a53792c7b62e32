// Package detector decides when a statically fetched page is a script shell
// that has to be rendered in a browser before it can be scraped.
package detector

import (
	"bytes"
	"strings"
)

// DefaultBodyLengthThreshold is the size below which a script heavy page is
// treated as a shell.
const DefaultBodyLengthThreshold = 2048

// Heuristic flags pages with rule-based checks.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. A zero threshold uses the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyLengthThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var shellMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// NeedsRender reports whether body looks like it only fills in client side.
func (h *Heuristic) NeedsRender(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(body) >= 25 {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body covered by script elements.
// An unclosed tag covers the rest of the document.
func scriptShare(body []byte) int {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return 0
	}
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel < 0 {
			break
		}
		start := pos + rel
		end := total
		if gt := strings.IndexByte(lower[start:], '>'); gt >= 0 {
			contentStart := start + gt + 1
			if closeRel := strings.Index(lower[contentStart:], closeTag); closeRel >= 0 {
				end = contentStart + closeRel + len(closeTag)
			}
		}
		covered += end - start
		pos = end
		if pos >= total {
			break
		}
	}
	return covered * 100 / total
}
