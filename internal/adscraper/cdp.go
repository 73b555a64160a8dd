// File: internal/adscraper/cdp.go
package adscraper

import (
	"context"
	"fmt"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// browserOps is the narrow surface of browser operations the detector,
// pipeline, and extractor need. Tests substitute a fake; production uses
// cdpOps over a chromedp tab context.
type browserOps interface {
	// Eval runs an expression in the page and decodes its value into out
	// (out may be nil to discard the result).
	Eval(ctx context.Context, expr string, out any) error
	// EvalAsync is Eval with promise resolution.
	EvalAsync(ctx context.Context, expr string, out any) error
	// FullScreenshot captures the whole page.
	FullScreenshot(ctx context.Context) ([]byte, error)
	// ClippedScreenshot captures the given page-coordinate region.
	ClippedScreenshot(ctx context.Context, box BoundingBox) ([]byte, error)
	// MouseClick dispatches a native click at viewport coordinates.
	MouseClick(ctx context.Context, x, y float64) error
	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
	// CaptureMHTML snapshots the full document as a self-contained archive.
	CaptureMHTML(ctx context.Context) ([]byte, error)
	// BringToFront makes the tab the active foreground context.
	BringToFront(ctx context.Context) error
}

// cdpOps implements browserOps over chromedp. Every method expects a
// chromedp tab context.
type cdpOps struct {
	log *zap.Logger
}

func newCDPOps(log *zap.Logger) *cdpOps {
	return &cdpOps{log: log.Named("cdp")}
}

func (c *cdpOps) Eval(ctx context.Context, expr string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expr, out))
}

func (c *cdpOps) EvalAsync(ctx context.Context, expr string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expr, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

func (c *cdpOps) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("full screenshot: %w", err)
	}
	return buf, nil
}

func (c *cdpOps) ClippedScreenshot(ctx context.Context, box BoundingBox) ([]byte, error) {
	var buf []byte
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = cdppage.CaptureScreenshot().
			WithFormat(cdppage.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&cdppage.Viewport{
				X:      box.X,
				Y:      box.Y,
				Width:  box.Width,
				Height: box.Height,
				Scale:  1,
			}).
			Do(ctx)
		return err
	})
	if err := chromedp.Run(ctx, action); err != nil {
		return nil, fmt.Errorf("clipped screenshot: %w", err)
	}
	return buf, nil
}

func (c *cdpOps) MouseClick(ctx context.Context, x, y float64) error {
	return chromedp.Run(ctx, chromedp.MouseClickXY(x, y))
}

func (c *cdpOps) Location(ctx context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (c *cdpOps) CaptureMHTML(ctx context.Context) ([]byte, error) {
	var data string
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = cdppage.CaptureSnapshot().
			WithFormat(cdppage.CaptureSnapshotFormatMhtml).
			Do(ctx)
		return err
	})
	if err := chromedp.Run(ctx, action); err != nil {
		return nil, fmt.Errorf("mhtml snapshot: %w", err)
	}
	return []byte(data), nil
}

func (c *cdpOps) BringToFront(ctx context.Context) error {
	return chromedp.Run(ctx, cdppage.BringToFront())
}

// installHelperScript registers the visibility/dialog helpers on every new
// document of the target and evaluates them in the current document, which
// may already have loaded by the time the target is instrumented.
func installHelperScript(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(helperScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(helperScript, nil),
	)
}
