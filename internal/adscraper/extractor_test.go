// File: internal/adscraper/extractor_test.go

package adscraper

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedOps replays canned collection results keyed by arena handle.
type scriptedOps struct {
	frames map[int]frameCollectResult
	evals  int
}

func (s *scriptedOps) Eval(_ context.Context, expr string, out any) error {
	s.evals++
	for handle, res := range s.frames {
		if expr == fmt.Sprintf(collectScriptTpl, "ad", handle) ||
			expr == fmt.Sprintf(collectScriptTpl, "frame", handle) {
			data, err := json.Marshal(res)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, out)
		}
	}
	return fmt.Errorf("unexpected script evaluation")
}

func (s *scriptedOps) EvalAsync(context.Context, string, any) error { return nil }

func (s *scriptedOps) FullScreenshot(context.Context) ([]byte, error) { return nil, nil }

func (s *scriptedOps) ClippedScreenshot(context.Context, BoundingBox) ([]byte, error) {
	return nil, nil
}

func (s *scriptedOps) MouseClick(context.Context, float64, float64) error { return nil }

func (s *scriptedOps) Location(context.Context) (string, error) { return "", nil }

func (s *scriptedOps) CaptureMHTML(context.Context) ([]byte, error) { return nil, nil }

func (s *scriptedOps) BringToFront(context.Context) error { return nil }

type recordingFetcher struct {
	frames []FrameResult
}

func (r *recordingFetcher) DownloadAd(_ context.Context, frames []FrameResult) {
	r.frames = frames
}

func TestExtractAdChildrenPrecedeParent(t *testing.T) {
	ops := &scriptedOps{frames: map[int]frameCollectResult{
		1: {
			Accessible: true,
			FrameURL:   "https://pub.example/page",
			Links:      []Link{{Href: "https://ads.example/click", AdURL: "https://brand.example"}},
			Disclosures: []discRef{
				{Handle: 9, Href: "https://adssettings.google.com/whythisad", FrameURL: "https://pub.example/page"},
			},
			Children: []childRef{
				{Handle: 2, Src: "https://ads.example/inner", Accessible: true},
				{Handle: 3, Src: "https://other.example/locked", Accessible: false},
			},
		},
		2: {
			Accessible: true,
			FrameURL:   "https://ads.example/inner",
			Children:   []childRef{{Handle: 4, Src: "https://ads.example/deep", Accessible: true}},
		},
		4: {
			Accessible: true,
			FrameURL:   "https://ads.example/deep",
			Images:     []Image{{Src: "https://cdn.example/ad.png", Width: 300, Height: 250}},
		},
	}}
	fetcher := &recordingFetcher{}
	ext := NewExtractor(ops, fetcher, zap.NewNop())

	got, err := ext.ExtractAd(context.Background(), 1)
	require.NoError(t, err)

	want := []FrameResult{
		{
			FrameURL:            "https://ads.example/deep",
			FrameID:             "f2",
			ParentFrameURL:      "https://ads.example/inner",
			ParentFrameID:       "f1",
			ContainsImgsOrLinks: true,
			Images:              []Image{{Src: "https://cdn.example/ad.png", Width: 300, Height: 250}},
		},
		{
			FrameURL:       "https://ads.example/inner",
			FrameID:        "f1",
			ParentFrameURL: "https://pub.example/page",
			ParentFrameID:  "f0",
		},
		{
			FrameURL:            "https://pub.example/page",
			FrameID:             "f0",
			ContainsImgsOrLinks: true,
			Links:               []Link{{Href: "https://ads.example/click", AdURL: "https://brand.example"}},
			DisclosureRefs: []DisclosureRef{
				{Handle: 9, Href: "https://adssettings.google.com/whythisad", FrameURL: "https://pub.example/page"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame results mismatch (-want +got):\n%s", diff)
	}

	// The inaccessible child was never evaluated.
	assert.Equal(t, 3, ops.evals)
	// Media downloads run over the full frame list.
	assert.Equal(t, got, fetcher.frames)
}

func TestExtractAdInaccessibleRoot(t *testing.T) {
	ops := &scriptedOps{frames: map[int]frameCollectResult{1: {Accessible: false}}}
	ext := NewExtractor(ops, nil, zap.NewNop())

	got, err := ext.ExtractAd(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractAdRootEvalFailure(t *testing.T) {
	ops := &scriptedOps{frames: map[int]frameCollectResult{}}
	ext := NewExtractor(ops, nil, zap.NewNop())

	_, err := ext.ExtractAd(context.Background(), 7)
	assert.Error(t, err)
}

func TestExtractAdFailingChildSkipped(t *testing.T) {
	ops := &scriptedOps{frames: map[int]frameCollectResult{
		1: {
			Accessible: true,
			FrameURL:   "https://pub.example/page",
			Links:      []Link{{Href: "https://ads.example/click"}},
			Children:   []childRef{{Handle: 2, Src: "https://gone.example", Accessible: true}},
		},
		// Handle 2 has no scripted result, so its evaluation fails.
	}}
	ext := NewExtractor(ops, nil, zap.NewNop())

	got, err := ext.ExtractAd(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://pub.example/page", got[0].FrameURL)
}
