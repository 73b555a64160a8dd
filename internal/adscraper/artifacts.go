// File: internal/adscraper/artifacts.go
package adscraper

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// Output subdirectories produced under the visit's output directory.
const (
	dirAdImages        = "ad_imgs"
	dirAdVideos        = "ad_videos"
	dirAdDisclosures   = "ad_disclosures"
	dirAdShots         = "adshots"
	dirExcludedAdShots = "excluded_adshots"
	dirLandingPages    = "landing_ads"
)

// Counters are the per-visit sequence numbers for generated files. One
// instance is allocated per visit and threaded to whichever step writes a
// file next.
type Counters struct {
	mu          sync.Mutex
	Screenshots int
	HTMLDumps   int
	Errors      int
}

func (c *Counters) nextScreenshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Screenshots++
	return c.Screenshots
}

func (c *Counters) nextHTML() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HTMLDumps++
	return c.HTMLDumps
}

func (c *Counters) noteError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors++
}

// Artifacts owns the on-disk layout of one visit: directory creation,
// sequence-numbered file names, and writes.
type Artifacts struct {
	root     string
	urlHash  string
	counters *Counters
	log      *zap.Logger
}

func newArtifacts(root, urlHash string, log *zap.Logger) *Artifacts {
	return &Artifacts{
		root:     root,
		urlHash:  urlHash,
		counters: &Counters{},
		log:      log.Named("artifacts"),
	}
}

// EnsureDirs creates the visit's output tree. The landing-page directory is
// only created when ad clicking is enabled.
func (a *Artifacts) EnsureDirs(adClicking bool) error {
	dirs := []string{
		a.root,
		filepath.Join(a.root, dirAdImages),
		filepath.Join(a.root, dirAdVideos),
		filepath.Join(a.root, dirAdDisclosures),
		filepath.Join(a.root, dirAdShots),
		filepath.Join(a.root, dirExcludedAdShots),
	}
	if adClicking {
		dirs = append(dirs, filepath.Join(a.root, dirLandingPages))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating output dir %s: %w", d, err)
		}
	}
	return nil
}

// ScreenshotName allocates the next screenshot file name:
// {urlHash}_{n}_{suffix}.png.
func (a *Artifacts) ScreenshotName(suffix string) string {
	return fmt.Sprintf("%s_%d_%s.png", a.urlHash, a.counters.nextScreenshot(), suffix)
}

// HTMLBaseName allocates the next HTML dump base name (without extension):
// {urlHash}_{n}_{suffix}.
func (a *Artifacts) HTMLBaseName(suffix string) string {
	return fmt.Sprintf("%s_%d_%s", a.urlHash, a.counters.nextHTML(), suffix)
}

// Write stores data under dir/name inside the visit root. Failures are
// logged and counted, never propagated: a lost artifact must not abort the
// scrape.
func (a *Artifacts) Write(dir, name string, data []byte) string {
	path := filepath.Join(a.root, dir, name)
	if dir == "" {
		path = filepath.Join(a.root, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.counters.noteError()
		a.log.Warn("failed to write artifact", zap.String("path", path), zap.Error(err))
		return ""
	}
	return name
}

// Dir returns the absolute path of a subdirectory inside the visit root.
func (a *Artifacts) Dir(sub string) string { return filepath.Join(a.root, sub) }

// URLHash returns the visit's URL hash used as a filename prefix.
func (a *Artifacts) URLHash() string { return a.urlHash }

// Counters exposes the per-visit sequence counters.
func (a *Artifacts) Counters() *Counters { return a.counters }

// shortHash derives a short content-independent hex token from s using
// SHAKE-256. Used in media filenames to keep them unique without reading the
// content.
func shortHash(s string) string {
	h := make([]byte, 2)
	sha3.ShakeSum256(h, []byte(s))
	return hex.EncodeToString(h)
}

// HashURL derives the visit-level URL hash used as a filename prefix.
func HashURL(u string) string {
	h := make([]byte, 4)
	sha3.ShakeSum256(h, []byte(u))
	return hex.EncodeToString(h)
}
