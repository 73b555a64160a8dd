// File: internal/adscraper/detector.go
package adscraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// rawCandidate is one selector match as reported by the page: its arena
// handle, its child-index path from the document root, and its attribute
// snapshot.
type rawCandidate struct {
	Handle int          `json:"handle"`
	Path   string       `json:"path"`
	Attrs  ElementAttrs `json:"attrs"`
}

// Detector locates ad candidates on the primary page.
type Detector struct {
	selectorsJSON string
	ops           browserOps
	log           *zap.Logger
}

// NewDetector builds a detector over the full selector catalog plus any
// configured extras.
func NewDetector(extras []string, ops browserOps, log *zap.Logger) *Detector {
	payload, err := json.Marshal(Selectors(extras...))
	if err != nil {
		// The catalog is a static string list; this cannot fail.
		payload = []byte("[]")
	}
	return &Detector{
		selectorsJSON: string(payload),
		ops:           ops,
		log:           log.Named("detector"),
	}
}

// Detect applies the catalog to the live DOM and returns the top-most
// visible ad candidates in top-to-bottom page order. A failing catalog
// application yields an empty list, never an error: detection runs against
// arbitrary third-party content and must degrade.
func (d *Detector) Detect(ctx context.Context) []Candidate {
	expr := fmt.Sprintf(detectScriptTpl, d.selectorsJSON)
	var raws []rawCandidate
	if err := d.ops.Eval(ctx, expr, &raws); err != nil {
		d.log.Warn("ad detection evaluation failed", zap.Error(err))
		return nil
	}
	return orderCandidates(raws)
}

// orderCandidates performs containment dedup and ordering over raw matches:
// candidates nested inside another candidate are dropped (ancestors win,
// regardless of selector specificity), and survivors are sorted by vertical
// position ascending. The sort is stable: equal y keeps detection order.
func orderCandidates(raws []rawCandidate) []Candidate {
	var top []rawCandidate
	for i, c := range raws {
		nested := false
		for j, other := range raws {
			if i == j {
				continue
			}
			if isAncestorPath(other.Path, c.Path) {
				nested = true
				break
			}
		}
		if !nested {
			top = append(top, c)
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		return candidateY(top[i]) < candidateY(top[j])
	})

	out := make([]Candidate, len(top))
	for i, c := range top {
		out[i] = Candidate{Handle: c.Handle, Index: i, Attrs: c.Attrs}
	}
	return out
}

// candidateY is the sort key: elements without a box sink to the bottom.
func candidateY(c rawCandidate) float64 {
	if c.Attrs.Box == nil {
		return 1 << 30
	}
	return c.Attrs.Box.Y
}

// isAncestorPath reports whether the element at path a is a proper DOM
// ancestor of the element at path b. Paths are slash-joined child indices
// from the document root, so ancestry is a proper prefix at a segment
// boundary. The document root itself (empty path) contains everything.
func isAncestorPath(a, b string) bool {
	if a == b {
		return false
	}
	if a == "" {
		return true
	}
	return strings.HasPrefix(b, a) && len(b) > len(a) && b[len(a)] == '/'
}
