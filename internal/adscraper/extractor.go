// File: internal/adscraper/extractor.go
package adscraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// maxFrameDepth bounds the frame recursion; ad markup nested deeper than
// this is malformed or adversarial.
const maxFrameDepth = 10

// frameCollectResult mirrors the collection script's per-frame payload.
type frameCollectResult struct {
	Accessible       bool       `json:"accessible"`
	FrameURL         string     `json:"frameUrl"`
	IsMainDocument   bool       `json:"isMainDocument"`
	Links            []Link     `json:"links"`
	GwdLinks         []Link     `json:"gwdLinks"`
	Images           []Image    `json:"imgs"`
	BackgroundImages []Image    `json:"backgroundImgs"`
	Videos           []Video    `json:"videos"`
	Scripts          []string   `json:"scripts"`
	IframeSrcs       []string   `json:"iframeSrcs"`
	Disclosures      []discRef  `json:"disclosures"`
	Children         []childRef `json:"children"`
}

type discRef struct {
	Handle   int    `json:"handle"`
	Href     string `json:"href"`
	FrameURL string `json:"frameUrl"`
}

type childRef struct {
	Handle     int    `json:"handle"`
	Src        string `json:"src"`
	Accessible bool   `json:"accessible"`
}

// Extractor walks one ad element and every frame nested within it,
// collecting links, media, scripts, and disclosure controls. Traversal is
// depth-first; within each frame the child frames' results precede the
// frame's own result, so the root frame's result is always last.
type Extractor struct {
	ops    browserOps
	log    *zap.Logger
	nextID int
	dlr    mediaFetcher
}

// mediaFetcher triggers best-effort media downloads for one ad.
type mediaFetcher interface {
	DownloadAd(ctx context.Context, frames []FrameResult)
}

// NewExtractor builds an extractor. downloader may be nil to disable media
// capture.
func NewExtractor(ops browserOps, downloader mediaFetcher, log *zap.Logger) *Extractor {
	return &Extractor{
		ops: ops,
		dlr: downloader,
		log: log.Named("extractor"),
	}
}

// ExtractAd collects the frame results for the ad registered at the given
// arena handle, then triggers media downloads over everything found.
func (e *Extractor) ExtractAd(ctx context.Context, handle int) ([]FrameResult, error) {
	var out []FrameResult
	rootID := e.allocFrameID()
	if err := e.extractFrame(ctx, "ad", handle, rootID, "", "", 0, &out); err != nil {
		return nil, err
	}
	if e.dlr != nil {
		e.dlr.DownloadAd(ctx, out)
	}
	return out, nil
}

func (e *Extractor) allocFrameID() string {
	id := fmt.Sprintf("f%d", e.nextID)
	e.nextID++
	return id
}

// extractFrame collects one frame and recurses into its accessible child
// frames. A child frame failing to collect is skipped; its siblings and the
// current frame still produce results.
func (e *Extractor) extractFrame(ctx context.Context, kind string, handle int, frameID, parentURL, parentID string, depth int, out *[]FrameResult) error {
	if depth > maxFrameDepth {
		e.log.Debug("frame recursion depth cap hit", zap.String("frame", frameID))
		return nil
	}

	expr := fmt.Sprintf(collectScriptTpl, kind, handle)
	var res frameCollectResult
	if err := e.ops.Eval(ctx, expr, &res); err != nil {
		return fmt.Errorf("collecting frame %s: %w", frameID, err)
	}
	if !res.Accessible {
		e.log.Debug("frame document not accessible, skipping",
			zap.String("frame", frameID), zap.String("parent", parentURL))
		return nil
	}

	// Children first, own result last.
	for _, child := range res.Children {
		if !child.Accessible {
			e.log.Debug("child frame not accessible",
				zap.String("src", child.Src), zap.String("parent", res.FrameURL))
			continue
		}
		childID := e.allocFrameID()
		if err := e.extractFrame(ctx, "frame", child.Handle, childID, res.FrameURL, frameID, depth+1, out); err != nil {
			e.log.Debug("child frame extraction failed",
				zap.String("src", child.Src), zap.Error(err))
		}
	}

	fr := FrameResult{
		FrameURL:         res.FrameURL,
		FrameID:          frameID,
		ParentFrameURL:   parentURL,
		ParentFrameID:    parentID,
		IsMainDocument:   res.IsMainDocument,
		Links:            res.Links,
		GwdLinks:         res.GwdLinks,
		Images:           res.Images,
		BackgroundImages: res.BackgroundImages,
		Videos:           res.Videos,
		Scripts:          res.Scripts,
		IframeSrcs:       res.IframeSrcs,
	}
	for _, d := range res.Disclosures {
		fr.DisclosureRefs = append(fr.DisclosureRefs, DisclosureRef{
			Handle:   d.Handle,
			Href:     d.Href,
			FrameURL: d.FrameURL,
		})
	}
	fr.ContainsImgsOrLinks = fr.hasContent()
	*out = append(*out, fr)
	return nil
}
