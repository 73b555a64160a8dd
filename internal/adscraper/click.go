// File: internal/adscraper/click.go
package adscraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// point is a viewport coordinate pair reported by the page.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clicker activates disclosure controls. Two strategies are tried per
// control, in order: a synthetic JS click in the owning document, then a
// native input click at the control's resolved viewport position. The first
// control that accepts a click wins for the whole ad.
type Clicker struct {
	ops browserOps
	log *zap.Logger
}

func NewClicker(ops browserOps, log *zap.Logger) *Clicker {
	return &Clicker{ops: ops, log: log.Named("clicker")}
}

// ClickDisclosure walks the ad's frame results in depth-first order and
// attempts to activate exactly one disclosure control. It returns the href
// of the clicked control and whether any click succeeded.
func (c *Clicker) ClickDisclosure(ctx context.Context, frames []FrameResult) (string, bool) {
	for _, f := range frames {
		for _, ref := range f.DisclosureRefs {
			if c.clickOne(ctx, ref) {
				return ref.Href, true
			}
		}
	}
	return "", false
}

func (c *Clicker) clickOne(ctx context.Context, ref DisclosureRef) bool {
	// Strategy 1: synthetic click.
	var ok bool
	expr := fmt.Sprintf(jsClickScriptTpl, ref.Handle, ref.Handle)
	if err := c.ops.Eval(ctx, expr, &ok); err != nil {
		c.log.Debug("js click evaluation failed",
			zap.String("href", ref.Href), zap.Error(err))
	} else if ok {
		return true
	}

	// Strategy 2: native click at the control's viewport position.
	var pt *point
	expr = fmt.Sprintf(discPointScriptTpl, ref.Handle, ref.Handle)
	if err := c.ops.Eval(ctx, expr, &pt); err != nil || pt == nil {
		c.log.Debug("disclosure control position unavailable",
			zap.String("href", ref.Href), zap.Error(err))
		return false
	}
	if err := c.ops.MouseClick(ctx, pt.X, pt.Y); err != nil {
		c.log.Debug("native click failed",
			zap.String("href", ref.Href), zap.Error(err))
		return false
	}
	return true
}
