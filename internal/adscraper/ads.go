// File: internal/adscraper/ads.go
package adscraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adscope/adscope/internal/collector"
	"github.com/adscope/adscope/internal/config"
)

// CollectorID is the key the ad collector's payload appears under in the
// visit result.
const CollectorID = "ads"

// Options is the static configuration of the ad collector; per-visit values
// arrive through the collector contract's InitOptions.
type Options struct {
	Ads       config.AdsConfig
	Network   config.NetworkConfig
	Viewport  config.ViewportConfig
	UserAgent string
}

// Collector is the ad pipeline behind the shared collector lifecycle
// contract: detection after load settles, scraping, disclosure capture from
// pop-up tabs, and final reconciliation.
type Collector struct {
	cfg Options
	log *zap.Logger
	ops browserOps

	// Per-visit state, reset in Init.
	opts            collector.InitOptions
	arts            *Artifacts
	detector        *Detector
	pipeline        *Pipeline
	clicker         *Clicker
	extractor       *Extractor
	pageCtx         context.Context
	pageURL         string
	popupWait       time.Duration
	settle          time.Duration
	clickingEnabled bool
	sleep           func(context.Context, time.Duration)

	mu          sync.Mutex
	disclosures []DisclosureContent
	landingURLs []string
	clickedAny  bool
}

var _ collector.Collector = (*Collector)(nil)

// New builds the ad collector.
func New(cfg Options, log *zap.Logger) *Collector {
	l := log.Named("adscraper")
	return &Collector{
		cfg:   cfg,
		log:   l,
		ops:   newCDPOps(l),
		sleep: contextSleep,
	}
}

// ID implements collector.Collector.
func (a *Collector) ID() string { return CollectorID }

// Init prepares per-visit state: output directories, the element pipeline,
// and the media downloader. The primary page handle must already exist.
func (a *Collector) Init(ctx context.Context, opts collector.InitOptions) error {
	if opts.Page == nil || opts.Page.Ctx == nil {
		return fmt.Errorf("ad collector requires a primary page handle")
	}

	a.opts = opts
	a.pageCtx = opts.Page.Ctx
	a.pageURL = opts.URL
	a.popupWait = a.cfg.Ads.DisclosurePopupWait
	a.settle = a.cfg.Ads.DisclosureSettle
	a.clickingEnabled = a.cfg.Ads.EnableClicking
	a.disclosures = nil
	a.landingURLs = nil
	a.clickedAny = false

	urlHash := opts.URLHash
	if urlHash == "" {
		urlHash = HashURL(opts.URL)
	}
	a.arts = newArtifacts(opts.OutputDir, urlHash, a.log)
	if err := a.arts.EnsureDirs(a.clickingEnabled); err != nil {
		return err
	}

	downloader := NewDownloader(DownloaderOptions{
		ImgDir:      a.arts.Dir(dirAdImages),
		VideoDir:    a.arts.Dir(dirAdVideos),
		URLHash:     urlHash,
		UserAgent:   a.cfg.UserAgent,
		Referer:     opts.URL,
		Timeout:     a.cfg.Network.DownloadTimeout,
		Concurrency: a.cfg.Network.DownloadConcurrency,
		RatePerSec:  a.cfg.Network.DownloadRateLimit,
	}, a.log)

	a.detector = NewDetector(a.cfg.Ads.ExtraSelectors, a.ops, a.log)
	a.extractor = NewExtractor(a.ops, downloader, a.log)
	a.clicker = NewClicker(a.ops, a.log)
	a.pipeline = NewPipeline(
		newAdPageCDP(a.ops),
		a.extractor,
		a.clicker,
		a.arts,
		PipelineConfig{
			MaxAds:         a.cfg.Ads.MaxAdsPerVisit,
			MinPx:          a.cfg.Ads.MinAdSize,
			ViewportWidth:  float64(a.cfg.Viewport.Width),
			ViewportHeight: float64(a.cfg.Viewport.Height),
		},
		a.log,
	)

	return installHelperScript(a.pageCtx)
}

// AddTarget installs the helper scripts on page-type contexts so visibility
// checks and dialog dismissal work inside them too. Other context kinds need
// no ad instrumentation.
func (a *Collector) AddTarget(ctx context.Context, t *collector.TargetHandle) error {
	if t.Kind != collector.KindPage || t.Ctx == nil {
		return nil
	}
	return installHelperScript(t.Ctx)
}

// AddListener handles a pop-up page opened during scraping: either an
// ad-network disclosure page or an ad landing page.
func (a *Collector) AddListener(ctx context.Context, t *collector.TargetHandle) error {
	if t.Ctx == nil {
		return fmt.Errorf("popup target %s has no session", t.ID)
	}
	return a.handlePopup(ctx, t.Ctx)
}

// PostLoad has nothing to do for ads; detection waits for GetData so the
// page has fully settled first.
func (a *Collector) PostLoad(ctx context.Context) error { return nil }

// GetData runs the whole collection sequence on the settled page and
// produces the final payload.
func (a *Collector) GetData(ctx context.Context) (any, error) {
	if a.pipeline == nil {
		return nil, fmt.Errorf("ad collector not initialized")
	}

	a.preparePage(ctx)

	candidates := a.detector.Detect(a.pageCtx)
	a.log.Info("ad candidates detected", zap.Int("count", len(candidates)))

	ads, stats := a.pipeline.Scrape(a.pageCtx, candidates)

	if a.clickingEnabled {
		a.clickAds(ctx, ads)
	}

	// Late disclosure tabs are still loading; give them a fixed grace
	// period before the reconciliation pass.
	a.sleep(ctx, a.settle)

	a.mu.Lock()
	contents := make([]DisclosureContent, len(a.disclosures))
	copy(contents, a.disclosures)
	landing := make([]string, len(a.landingURLs))
	copy(landing, a.landingURLs)
	a.mu.Unlock()

	matched, unmatchedList := MatchDisclosures(ads, contents)
	stats.DisclosuresMatched = matched
	stats.DisclosuresUnmatched = len(unmatchedList)

	a.savePageDocument(a.pageCtx)

	return &Data{
		Stats:                stats,
		Ads:                  ads,
		VisitedLandingURLs:   landing,
		UnmatchedDisclosures: unmatchedList,
	}, nil
}

// preparePage clears native and consent dialogs and walks the page once to
// trigger lazy-loaded ad slots, with audit screenshots around each step.
func (a *Collector) preparePage(ctx context.Context) {
	a.auditShot("page_loaded")

	var dismissed int
	if err := a.ops.Eval(a.pageCtx, dismissDialogsScript, &dismissed); err != nil {
		a.log.Debug("dialog dismissal failed", zap.Error(err))
	} else if dismissed > 0 {
		a.log.Info("dismissed page dialogs", zap.Int("count", dismissed))
		a.auditShot("after_dismiss")
	}

	var done bool
	if err := a.ops.EvalAsync(a.pageCtx, scrollBottomAndUpScript, &done); err != nil {
		a.log.Debug("scroll walk failed", zap.Error(err))
	}
	a.auditShot("after_scroll")
}

// clickAds opens each scraped ad's destination in a new tab, one per unique
// host. Resulting pop-ups come back through AddListener as landing pages.
func (a *Collector) clickAds(ctx context.Context, ads []ScrapedAd) {
	a.mu.Lock()
	a.clickedAny = true
	a.mu.Unlock()

	seenHosts := make(map[string]struct{})
	for _, ad := range ads {
		dest := adDestination(ad)
		if dest == "" {
			continue
		}
		host := hostnameOf(dest)
		if host == "" {
			continue
		}
		if _, dup := seenHosts[host]; dup {
			continue
		}
		seenHosts[host] = struct{}{}

		expr := fmt.Sprintf("window.open(%q, '_blank'); true", dest)
		if err := a.ops.Eval(a.pageCtx, expr, nil); err != nil {
			a.log.Debug("opening ad destination failed",
				zap.String("url", dest), zap.Error(err))
			continue
		}
		a.log.Info("opened ad landing page", zap.String("url", dest))
		// Let the pop-up land before opening the next one.
		a.sleep(ctx, a.popupWait)
	}
}

// adDestination picks the most likely real destination of a scraped ad: an
// adurl parameter beats the raw href, and regular links beat tap areas.
func adDestination(ad ScrapedAd) string {
	pick := func(links []Link) string {
		for _, l := range links {
			if l.AdURL != "" {
				return l.AdURL
			}
		}
		for _, l := range links {
			if l.Href != "" {
				return l.Href
			}
		}
		return ""
	}
	for _, f := range ad.Frames {
		if dest := pick(f.Links); dest != "" {
			return dest
		}
	}
	for _, f := range ad.Frames {
		if dest := pick(f.GwdLinks); dest != "" {
			return dest
		}
	}
	return ""
}

func (a *Collector) adWasClicked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clickedAny
}

// savePageDocument archives the primary page as HTML and MHTML.
func (a *Collector) savePageDocument(ctx context.Context) {
	var html string
	if err := a.ops.Eval(ctx, outerHTMLScript, &html); err != nil {
		a.log.Debug("page html capture failed", zap.Error(err))
		return
	}
	base := a.arts.HTMLBaseName("page")
	a.arts.Write("", base+".html", []byte(html))
	if mhtml, err := a.ops.CaptureMHTML(ctx); err != nil {
		a.log.Debug("page mhtml capture failed", zap.Error(err))
	} else {
		a.arts.Write("", base+".mhtml", mhtml)
	}
}

func (a *Collector) auditShot(suffix string) {
	shot, err := a.ops.FullScreenshot(a.pageCtx)
	if err != nil {
		a.log.Debug("audit screenshot failed", zap.String("suffix", suffix), zap.Error(err))
		return
	}
	a.arts.Write("", a.arts.ScreenshotName(suffix), shot)
}
