// File: internal/adscraper/pipeline.go
package adscraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Fixed pacing for the scrape loop. Ad slots lazy-load and resize; the
// double scroll with a settle period between attempts lets them finish.
const (
	firstScrollSettle  = 2 * time.Second
	secondScrollSettle = 400 * time.Millisecond
	relayoutWait       = time.Second
	extraScrollPx      = 150
)

// Border styles applied to ad elements for audit screenshots.
const (
	adBorder       = "5px solid red"
	excludedBorder = "5px solid purple"
)

// adPage is the per-element page surface the pipeline drives. Production
// wires adPageCDP; tests substitute a fake.
type adPage interface {
	ScrollIntoView(ctx context.Context, handle int) error
	ScrollBy(ctx context.Context, dy int) error
	SetBorder(ctx context.Context, handle int, css string) error
	Box(ctx context.Context, handle int) (*BoundingBox, error)
	FullScreenshot(ctx context.Context) ([]byte, error)
	ElementScreenshot(ctx context.Context, box BoundingBox) ([]byte, error)
}

// adExtractor matches Extractor.ExtractAd.
type adExtractor interface {
	ExtractAd(ctx context.Context, handle int) ([]FrameResult, error)
}

// disclosureClicker matches Clicker.ClickDisclosure.
type disclosureClicker interface {
	ClickDisclosure(ctx context.Context, frames []FrameResult) (string, bool)
}

// PipelineConfig tunes one scrape run.
type PipelineConfig struct {
	MaxAds         int
	MinPx          float64
	ViewportWidth  float64
	ViewportHeight float64
}

// Pipeline consumes detected candidates in page order, applying geometry
// filters, screenshots, extraction, and disclosure clicks. One candidate
// failing never aborts the rest.
type Pipeline struct {
	page      adPage
	extractor adExtractor
	clicker   disclosureClicker
	arts      *Artifacts
	cfg       PipelineConfig
	log       *zap.Logger
	sleep     func(context.Context, time.Duration)
}

// NewPipeline assembles a pipeline.
func NewPipeline(page adPage, extractor adExtractor, clicker disclosureClicker, arts *Artifacts, cfg PipelineConfig, log *zap.Logger) *Pipeline {
	return &Pipeline{
		page:      page,
		extractor: extractor,
		clicker:   clicker,
		arts:      arts,
		cfg:       cfg,
		log:       log.Named("pipeline"),
		sleep:     contextSleep,
	}
}

// Scrape processes candidates in order up to the scrape cap and returns the
// finished ads plus the exclusion accounting. For runs under the cap,
// Detected always equals Scraped plus the three exclusion counters.
func (p *Pipeline) Scrape(ctx context.Context, candidates []Candidate) ([]ScrapedAd, Stats) {
	var stats Stats
	stats.Detected = len(candidates)

	p.auditScreenshot(ctx, "before_scraping")

	var ads []ScrapedAd
	processed := 0
	for _, cand := range candidates {
		if len(ads) >= p.cfg.MaxAds {
			break
		}
		processed++
		if ad, ok := p.scrapeOne(ctx, cand, &stats); ok {
			ads = append(ads, ad)
			stats.Scraped++
		}
	}

	p.auditScreenshot(ctx, "after_scraping")
	p.log.Info("ad scrape finished",
		zap.Int("detected", stats.Detected),
		zap.Int("processed", processed),
		zap.Int("scraped", stats.Scraped),
		zap.Int("small", stats.ExcludedSmall),
		zap.Int("empty", stats.ExcludedEmpty),
		zap.Int("noBox", stats.ExcludedNoBoundingBox))
	return ads, stats
}

// scrapeOne runs the full per-candidate sequence. It returns ok=false for
// every exclusion, after bumping the corresponding counter.
func (p *Pipeline) scrapeOne(ctx context.Context, cand Candidate, stats *Stats) (ScrapedAd, bool) {
	h := cand.Handle

	// Scroll twice with a settle period, then nudge past sticky footers.
	if err := p.page.ScrollIntoView(ctx, h); err != nil {
		p.log.Debug("scroll into view failed", zap.Int("ad", cand.Index), zap.Error(err))
	}
	p.sleep(ctx, firstScrollSettle)
	_ = p.page.ScrollIntoView(ctx, h)
	p.sleep(ctx, secondScrollSettle)
	_ = p.page.ScrollBy(ctx, extraScrollPx)

	// Remove any previous debug border and let the layout settle before
	// measuring.
	_ = p.page.SetBorder(ctx, h, "")
	p.sleep(ctx, relayoutWait)

	box, err := p.page.Box(ctx, h)
	if err != nil {
		p.log.Debug("bounding box read failed", zap.Int("ad", cand.Index), zap.Error(err))
		box = nil
	}
	if box == nil {
		stats.ExcludedNoBoundingBox++
		return ScrapedAd{}, false
	}
	if box.Width < p.cfg.MinPx || box.Height < p.cfg.MinPx {
		stats.ExcludedSmall++
		return ScrapedAd{}, false
	}

	frames, err := p.extractor.ExtractAd(ctx, h)
	if err != nil {
		p.log.Warn("ad extraction failed", zap.Int("ad", cand.Index), zap.Error(err))
		frames = nil
	}
	if !framesHaveContent(frames) {
		stats.ExcludedEmpty++
		// Still screenshot empty candidates, with a distinguishing border,
		// so exclusions can be audited.
		_ = p.page.SetBorder(ctx, h, excludedBorder)
		p.captureAdShot(ctx, *box, dirExcludedAdShots, "excluded_adshot")
		_ = p.page.SetBorder(ctx, h, "")
		return ScrapedAd{}, false
	}

	// Trust the most recent measurement over the detection-time geometry.
	cand.Attrs.Box = box

	_ = p.page.SetBorder(ctx, h, adBorder)
	shotName := p.captureAdShot(ctx, *box, dirAdShots, "adshot")

	clickedHref, clicked := p.clicker.ClickDisclosure(ctx, frames)
	if clicked {
		stats.DisclosureClicks++
	}

	// Live arena references must not outlive the scrape of this ad.
	for i := range frames {
		frames[i].DisclosureRefs = nil
	}

	return ScrapedAd{
		ElementAttrs:          cand.Attrs,
		Index:                 cand.Index,
		ScreenshotFile:        shotName,
		ClickedDisclosureHref: clickedHref,
		Frames:                frames,
	}, true
}

// captureAdShot takes an element screenshot clamped to viewport size and
// writes it into dir. Returns the file name, or "" on failure.
func (p *Pipeline) captureAdShot(ctx context.Context, box BoundingBox, dir, suffix string) string {
	clamped := box
	if p.cfg.ViewportWidth > 0 && clamped.Width > p.cfg.ViewportWidth {
		clamped.Width = p.cfg.ViewportWidth
	}
	if p.cfg.ViewportHeight > 0 && clamped.Height > p.cfg.ViewportHeight {
		clamped.Height = p.cfg.ViewportHeight
	}
	shot, err := p.page.ElementScreenshot(ctx, clamped)
	if err != nil {
		p.log.Debug("element screenshot failed", zap.Error(err))
		return ""
	}
	return p.arts.Write(dir, p.arts.ScreenshotName(suffix), shot)
}

func (p *Pipeline) auditScreenshot(ctx context.Context, suffix string) {
	shot, err := p.page.FullScreenshot(ctx)
	if err != nil {
		p.log.Debug("full-page screenshot failed", zap.String("suffix", suffix), zap.Error(err))
		return
	}
	p.arts.Write("", p.arts.ScreenshotName(suffix), shot)
}

func framesHaveContent(frames []FrameResult) bool {
	for i := range frames {
		if frames[i].hasContent() {
			return true
		}
	}
	return false
}

// contextSleep waits for d or until ctx is done.
func contextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// adPageCDP implements adPage by formatting the arena scripts and running
// them through browserOps.
type adPageCDP struct {
	ops browserOps
}

func newAdPageCDP(ops browserOps) *adPageCDP { return &adPageCDP{ops: ops} }

func (a *adPageCDP) ScrollIntoView(ctx context.Context, handle int) error {
	return a.ops.Eval(ctx, fmt.Sprintf(scrollIntoViewScriptTpl, handle, handle), nil)
}

func (a *adPageCDP) ScrollBy(ctx context.Context, dy int) error {
	return a.ops.Eval(ctx, fmt.Sprintf(scrollByScriptTpl, dy), nil)
}

func (a *adPageCDP) SetBorder(ctx context.Context, handle int, css string) error {
	return a.ops.Eval(ctx, fmt.Sprintf(adBorderScriptTpl, handle, handle, css), nil)
}

func (a *adPageCDP) Box(ctx context.Context, handle int) (*BoundingBox, error) {
	var box *BoundingBox
	if err := a.ops.Eval(ctx, fmt.Sprintf(adBoxScriptTpl, handle, handle), &box); err != nil {
		return nil, err
	}
	return box, nil
}

func (a *adPageCDP) FullScreenshot(ctx context.Context) ([]byte, error) {
	return a.ops.FullScreenshot(ctx)
}

func (a *adPageCDP) ElementScreenshot(ctx context.Context, box BoundingBox) ([]byte, error) {
	return a.ops.ClippedScreenshot(ctx, box)
}
