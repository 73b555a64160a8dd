// File: internal/adscraper/pipeline_test.go

package adscraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePage struct {
	boxes     map[int]*BoundingBox
	boxErrs   map[int]error
	borders   []string
	fullShots int
	elemShots []BoundingBox
	scrolled  []int
}

func (f *fakePage) ScrollIntoView(_ context.Context, handle int) error {
	f.scrolled = append(f.scrolled, handle)
	return nil
}

func (f *fakePage) ScrollBy(context.Context, int) error { return nil }

func (f *fakePage) SetBorder(_ context.Context, _ int, css string) error {
	f.borders = append(f.borders, css)
	return nil
}

func (f *fakePage) Box(_ context.Context, handle int) (*BoundingBox, error) {
	if err, ok := f.boxErrs[handle]; ok {
		return nil, err
	}
	return f.boxes[handle], nil
}

func (f *fakePage) FullScreenshot(context.Context) ([]byte, error) {
	f.fullShots++
	return []byte("full"), nil
}

func (f *fakePage) ElementScreenshot(_ context.Context, box BoundingBox) ([]byte, error) {
	f.elemShots = append(f.elemShots, box)
	return []byte("elem"), nil
}

type fakeExtractor struct {
	frames map[int][]FrameResult
	errs   map[int]error
	calls  int
}

func (f *fakeExtractor) ExtractAd(_ context.Context, handle int) ([]FrameResult, error) {
	f.calls++
	if err, ok := f.errs[handle]; ok {
		return nil, err
	}
	return f.frames[handle], nil
}

type fakeClicker struct {
	href    string
	clicked bool
	calls   int
}

func (f *fakeClicker) ClickDisclosure(context.Context, []FrameResult) (string, bool) {
	f.calls++
	return f.href, f.clicked
}

func contentFrames(url string) []FrameResult {
	return []FrameResult{{
		FrameURL:            url,
		FrameID:             "f1",
		IsMainDocument:      true,
		ContainsImgsOrLinks: true,
		Links:               []Link{{Href: url + "/click"}},
		DisclosureRefs:      []DisclosureRef{{Handle: 99, Href: "https://adssettings.google.com/whythisad"}},
	}}
}

func newTestPipeline(t *testing.T, page *fakePage, ext *fakeExtractor, clk *fakeClicker, cfg PipelineConfig) *Pipeline {
	t.Helper()
	arts := newArtifacts(t.TempDir(), "cafe0123", zap.NewNop())
	require.NoError(t, arts.EnsureDirs(false))
	p := NewPipeline(page, ext, clk, arts, cfg, zap.NewNop())
	p.sleep = func(context.Context, time.Duration) {}
	return p
}

func sizedCandidate(handle int, w, h float64) Candidate {
	return Candidate{Handle: handle, Index: handle, Attrs: ElementAttrs{
		Box: &BoundingBox{X: 0, Y: float64(handle) * 100, Width: w, Height: h},
	}}
}

func TestScrapeStopsAtCap(t *testing.T) {
	page := &fakePage{boxes: map[int]*BoundingBox{}}
	ext := &fakeExtractor{frames: map[int][]FrameResult{}}
	var candidates []Candidate
	for i := 0; i < 5; i++ {
		page.boxes[i] = &BoundingBox{Width: 300, Height: 250}
		ext.frames[i] = contentFrames("https://ads.example")
		candidates = append(candidates, sizedCandidate(i, 300, 250))
	}

	p := newTestPipeline(t, page, ext, &fakeClicker{}, PipelineConfig{MaxAds: 2, MinPx: 30})
	ads, stats := p.Scrape(context.Background(), candidates)

	assert.Len(t, ads, 2)
	assert.Equal(t, 2, stats.Scraped)
	assert.Equal(t, 5, stats.Detected)
	assert.Equal(t, 2, ext.calls)
}

func TestMinSizeBoundary(t *testing.T) {
	page := &fakePage{boxes: map[int]*BoundingBox{
		0: {Width: 30, Height: 30},
		1: {Width: 29, Height: 30},
		2: {Width: 30, Height: 29},
	}}
	ext := &fakeExtractor{frames: map[int][]FrameResult{
		0: contentFrames("https://ads.example/a"),
		1: contentFrames("https://ads.example/b"),
		2: contentFrames("https://ads.example/c"),
	}}

	p := newTestPipeline(t, page, ext, &fakeClicker{}, PipelineConfig{MaxAds: 10, MinPx: 30})
	ads, stats := p.Scrape(context.Background(), []Candidate{
		sizedCandidate(0, 30, 30), sizedCandidate(1, 29, 30), sizedCandidate(2, 30, 29),
	})

	assert.Len(t, ads, 1)
	assert.Equal(t, 1, stats.Scraped)
	assert.Equal(t, 2, stats.ExcludedSmall)
	// Size exclusion happens before extraction.
	assert.Equal(t, 1, ext.calls)
}

func TestExclusionAccounting(t *testing.T) {
	page := &fakePage{
		boxes: map[int]*BoundingBox{
			0: {Width: 300, Height: 250},
			1: {Width: 10, Height: 10},
			3: {Width: 300, Height: 250},
		},
		boxErrs: map[int]error{2: errors.New("node gone")},
	}
	ext := &fakeExtractor{frames: map[int][]FrameResult{
		0: contentFrames("https://ads.example"),
		3: {{FrameURL: "https://empty.example", FrameID: "f1"}},
	}}

	p := newTestPipeline(t, page, ext, &fakeClicker{}, PipelineConfig{MaxAds: 10, MinPx: 30})
	ads, stats := p.Scrape(context.Background(), []Candidate{
		sizedCandidate(0, 300, 250),
		sizedCandidate(1, 10, 10),
		sizedCandidate(2, 300, 250),
		sizedCandidate(3, 300, 250),
	})

	assert.Len(t, ads, 1)
	assert.Equal(t, 4, stats.Detected)
	assert.Equal(t, 1, stats.Scraped)
	assert.Equal(t, 1, stats.ExcludedSmall)
	assert.Equal(t, 1, stats.ExcludedNoBoundingBox)
	assert.Equal(t, 1, stats.ExcludedEmpty)
	assert.Equal(t, stats.Detected,
		stats.Scraped+stats.ExcludedSmall+stats.ExcludedEmpty+stats.ExcludedNoBoundingBox)
}

func TestEmptyAdScreenshotWithExcludedBorder(t *testing.T) {
	page := &fakePage{boxes: map[int]*BoundingBox{0: {Width: 300, Height: 250}}}
	ext := &fakeExtractor{frames: map[int][]FrameResult{
		0: {{FrameURL: "https://empty.example", FrameID: "f1"}},
	}}

	p := newTestPipeline(t, page, ext, &fakeClicker{}, PipelineConfig{MaxAds: 10, MinPx: 30})
	ads, stats := p.Scrape(context.Background(), []Candidate{sizedCandidate(0, 300, 250)})

	assert.Empty(t, ads)
	assert.Equal(t, 1, stats.ExcludedEmpty)
	assert.Contains(t, page.borders, excludedBorder)
	assert.NotContains(t, page.borders, adBorder)

	entries, err := os.ReadDir(p.arts.Dir(dirExcludedAdShots))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "excluded_adshot")
}

func TestScrapedAdUsesFreshGeometry(t *testing.T) {
	fresh := &BoundingBox{X: 5, Y: 500, Width: 320, Height: 50}
	page := &fakePage{boxes: map[int]*BoundingBox{0: fresh}}
	ext := &fakeExtractor{frames: map[int][]FrameResult{0: contentFrames("https://ads.example")}}
	clk := &fakeClicker{href: "https://adssettings.google.com/whythisad", clicked: true}

	p := newTestPipeline(t, page, ext, clk, PipelineConfig{MaxAds: 10, MinPx: 30})
	stale := sizedCandidate(0, 300, 250)
	ads, stats := p.Scrape(context.Background(), []Candidate{stale})

	require.Len(t, ads, 1)
	assert.Equal(t, fresh, ads[0].Box)
	assert.Equal(t, clk.href, ads[0].ClickedDisclosureHref)
	assert.Equal(t, 1, stats.DisclosureClicks)
	assert.Contains(t, page.borders, adBorder)
	for _, fr := range ads[0].Frames {
		assert.Nil(t, fr.DisclosureRefs)
	}
}

func TestAdShotClampedToViewport(t *testing.T) {
	page := &fakePage{boxes: map[int]*BoundingBox{0: {Width: 5000, Height: 9000}}}
	ext := &fakeExtractor{frames: map[int][]FrameResult{0: contentFrames("https://ads.example")}}

	p := newTestPipeline(t, page, ext, &fakeClicker{}, PipelineConfig{
		MaxAds: 10, MinPx: 30, ViewportWidth: 1920, ViewportHeight: 1080,
	})
	_, _ = p.Scrape(context.Background(), []Candidate{sizedCandidate(0, 5000, 9000)})

	require.Len(t, page.elemShots, 1)
	assert.Equal(t, 1920.0, page.elemShots[0].Width)
	assert.Equal(t, 1080.0, page.elemShots[0].Height)
}

func TestAuditScreenshotsBracketScrape(t *testing.T) {
	page := &fakePage{boxes: map[int]*BoundingBox{}}
	p := newTestPipeline(t, page, &fakeExtractor{}, &fakeClicker{}, PipelineConfig{MaxAds: 10, MinPx: 30})

	_, _ = p.Scrape(context.Background(), nil)

	assert.Equal(t, 2, page.fullShots)
	names, err := filepath.Glob(filepath.Join(p.arts.Dir(""), "*.png"))
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestFramesHaveContent(t *testing.T) {
	assert.False(t, framesHaveContent(nil))
	assert.False(t, framesHaveContent([]FrameResult{{FrameURL: "https://a"}}))
	assert.True(t, framesHaveContent([]FrameResult{
		{FrameURL: "https://a"},
		{FrameURL: "https://b", Images: []Image{{Src: "https://b/i.png"}}},
	}))
}
