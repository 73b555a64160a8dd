// File: internal/crawler/crawler.go

package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adscope/adscope/internal/adscraper"
	"github.com/adscope/adscope/internal/collector"
	"github.com/adscope/adscope/internal/config"
)

// VisitResult is everything one page visit produced: identity, timing, the
// timeout flag, and the per-collector data keyed by collector ID.
type VisitResult struct {
	VisitID    string         `json:"visitId"`
	InitialURL string         `json:"initialUrl"`
	FinalURL   string         `json:"finalUrl"`
	Timeout    bool           `json:"timeout"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
	Data       map[string]any `json:"data"`
}

// Crawler runs visits. One Crawler can serve many sequential visits; each
// visit gets its own browser.
type Crawler struct {
	cfg      config.Interface
	log      *zap.Logger
	registry *collector.Registry
}

// New builds a crawler around the given collector registry.
func New(cfg config.Interface, log *zap.Logger, registry *collector.Registry) *Crawler {
	return &Crawler{cfg: cfg, log: log.Named("crawler"), registry: registry}
}

// Visit launches a browser, navigates to rawURL, lets every registered
// collector observe the page and its descendant contexts, and returns the
// assembled result. A navigation that exceeds the load budget is flagged,
// loading is stopped in every page context, and collection proceeds on
// whatever rendered.
func (c *Crawler) Visit(ctx context.Context, rawURL string) (*VisitResult, error) {
	visitID := uuid.NewString()
	log := c.log.With(zap.String("visit", visitID), zap.String("url", rawURL))

	netCfg := c.cfg.Network()
	ctx, cancel := context.WithTimeout(ctx, netCfg.MaxTotalTime())
	defer cancel()

	browserCfg := c.cfg.Browser()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(browserCfg)...)
	defer cancelAlloc()

	pageCtx, cancelPage := chromedp.NewContext(allocCtx)
	defer cancelPage()

	ua := UserAgentFor(browserCfg)
	vp := ViewportFor(browserCfg)
	if err := chromedp.Run(pageCtx, emulationActions(ua, vp, browserCfg.Mobile)...); err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	dismissNativeDialogs(pageCtx, log)

	orch := NewOrchestrator(c.registry, log)
	primaryID := chromedp.FromContext(pageCtx).Target.TargetID
	if err := orch.Start(pageCtx, primaryID); err != nil {
		return nil, fmt.Errorf("starting target orchestration: %w", err)
	}
	defer orch.Stop()

	urlHash := adscraper.HashURL(rawURL)
	outDir := filepath.Join(c.cfg.Output().Dir, urlHash)
	handle := &collector.TargetHandle{
		ID:      primaryID,
		Kind:    collector.KindPage,
		URL:     rawURL,
		Ctx:     pageCtx,
		Primary: true,
	}
	c.registry.InitAll(ctx, collector.InitOptions{
		URL:       rawURL,
		URLHash:   urlHash,
		OutputDir: outDir,
		Mobile:    browserCfg.Mobile,
		Logger:    log,
		Page:      handle,
	})

	result := &VisitResult{
		VisitID:    visitID,
		InitialURL: rawURL,
		Started:    time.Now(),
	}

	log.Info("navigating",
		zap.Duration("loadBudget", netCfg.MaxLoadTime),
		zap.Bool("mobile", browserCfg.Mobile))
	navCtx, cancelNav := context.WithTimeout(pageCtx, netCfg.MaxLoadTime)
	err := chromedp.Run(navCtx, chromedp.Navigate(rawURL))
	cancelNav()
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("page load exceeded budget, stopping loading")
		result.Timeout = true
		orch.StopLoadingAll()
	default:
		log.Warn("navigation error, collecting from partial page", zap.Error(err))
		result.Timeout = true
	}

	select {
	case <-time.After(netCfg.ExtraExecutionTime):
	case <-ctx.Done():
	}

	c.registry.PostLoadAll(ctx)
	result.Data = c.registry.DataAll(ctx)

	var finalURL string
	if err := chromedp.Run(pageCtx, chromedp.Location(&finalURL)); err != nil {
		log.Debug("could not read final location", zap.Error(err))
		finalURL = rawURL
	}
	result.FinalURL = finalURL
	result.Finished = time.Now()

	log.Info("visit finished",
		zap.String("finalUrl", result.FinalURL),
		zap.Bool("timeout", result.Timeout),
		zap.Duration("elapsed", result.Finished.Sub(result.Started)),
		zap.Int("contexts", len(orch.Contexts())))
	return result, nil
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	for flag, value := range browserFlags {
		opts = append(opts, chromedp.Flag(flag, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.ExtraArgs {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

func emulationActions(ua string, vp config.ViewportConfig, mobile bool) []chromedp.Action {
	actions := []chromedp.Action{
		emulation.SetUserAgentOverride(ua),
		emulation.SetDeviceMetricsOverride(vp.Width, vp.Height, vp.DeviceScale, mobile),
	}
	if vp.Touch {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5))
	}
	return actions
}

// dismissNativeDialogs declines alert/confirm/prompt dialogs as they open so
// they never block the visit.
func dismissNativeDialogs(pageCtx context.Context, log *zap.Logger) {
	chromedp.ListenTarget(pageCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); !ok {
			return
		}
		go func() {
			err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
				return page.HandleJavaScriptDialog(false).Do(ctx)
			}))
			if err != nil {
				log.Debug("dismissing dialog failed", zap.Error(err))
			}
		}()
	})
}
