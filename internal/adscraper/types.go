// File: internal/adscraper/types.go

// Package adscraper implements the ad collector: detection of ad slots on a
// rendered page, frame-recursive extraction of their contents, screenshot and
// media capture, and reconciliation of ad-choice disclosure pages opened in
// pop-up tabs.
package adscraper

// BoundingBox is an element rectangle in page coordinates (scroll offsets
// already applied).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinSide returns the smaller of width and height.
func (b BoundingBox) MinSide() float64 {
	if b.Width < b.Height {
		return b.Width
	}
	return b.Height
}

// ElementAttrs is the serializable snapshot of a detected element. Text
// fields are truncated in-page to 2000 characters.
type ElementAttrs struct {
	ID                 string       `json:"id,omitempty"`
	NodeType           string       `json:"nodeType,omitempty"`
	Class              string       `json:"class,omitempty"`
	InnerText          string       `json:"innerText,omitempty"`
	Href               string       `json:"href,omitempty"`
	Src                string       `json:"src,omitempty"`
	AriaLabel          string       `json:"ariaLabel,omitempty"`
	Placeholder        string       `json:"placeholder,omitempty"`
	BorderStyle        string       `json:"borderStyle,omitempty"`
	OuterHTML          string       `json:"outerHTML,omitempty"`
	Box                *BoundingBox `json:"boundingBox,omitempty"`
	IntersectsViewport bool         `json:"intersectsViewport"`
}

// Candidate is one detected ad slot. Handle indexes the per-visit in-page
// element arena; it is invalidated by navigation and must never be
// dereferenced across a navigation boundary.
type Candidate struct {
	Handle int          `json:"handle"`
	Index  int          `json:"index"`
	Attrs  ElementAttrs `json:"attrs"`
}

// Link is an anchor collected inside an ad frame. AdURL carries the value of
// an `adurl` query parameter when present, the real destination on several ad
// networks.
type Link struct {
	Href  string `json:"href"`
	AdURL string `json:"adurl,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Image records an <img> or background image with its rendered geometry.
type Image struct {
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Video records a <video> element that has a source.
type Video struct {
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DisclosureRef is a live reference to an ad-choice control registered in the
// in-page arena. It is click-target state only and is stripped from results
// before serialization.
type DisclosureRef struct {
	Handle   int    `json:"handle"`
	Href     string `json:"href"`
	FrameURL string `json:"frameUrl"`
}

// FrameResult holds everything extracted from one frame of one ad. A single
// ad yields a flat depth-first sequence of these with the root frame's own
// result last.
type FrameResult struct {
	FrameURL            string   `json:"frameUrl"`
	FrameID             string   `json:"frameId"`
	ParentFrameURL      string   `json:"parentFrameUrl,omitempty"`
	ParentFrameID       string   `json:"parentFrameId,omitempty"`
	IsMainDocument      bool     `json:"isMainDocument"`
	ContainsImgsOrLinks bool     `json:"containsImgsOrLinks"`
	Links               []Link   `json:"links"`
	GwdLinks            []Link   `json:"gwdLinks"`
	Images              []Image  `json:"imgs"`
	BackgroundImages    []Image  `json:"backgroundImgs"`
	Videos              []Video  `json:"videos"`
	Scripts             []string `json:"scripts"`
	IframeSrcs          []string `json:"iframeSrcs"`

	// DisclosureRefs are live arena references, excluded from output.
	DisclosureRefs []DisclosureRef `json:"-"`
}

// hasContent reports whether the frame yielded any link or media.
func (f *FrameResult) hasContent() bool {
	return len(f.Links) > 0 || len(f.GwdLinks) > 0 || len(f.Images) > 0 ||
		len(f.BackgroundImages) > 0 || len(f.Videos) > 0
}

// OutboundLink is a link extracted from a disclosure page.
type OutboundLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// DisclosureContent is the material gathered from one disclosure pop-up tab.
type DisclosureContent struct {
	OpenerPageURL string         `json:"openerPageUrl"`
	PageText      string         `json:"pageText,omitempty"`
	URL           string         `json:"disclosureUrl"`
	OutboundLinks []OutboundLink `json:"outboundLinks,omitempty"`
}

// ScrapedAd is the terminal record for one scraped ad.
type ScrapedAd struct {
	ElementAttrs
	Index                 int                `json:"index"`
	ScreenshotFile        string             `json:"screenshotFileName,omitempty"`
	ClickedDisclosureHref string             `json:"clickedDisclosureHref,omitempty"`
	Frames                []FrameResult      `json:"frameResults"`
	Disclosure            *DisclosureContent `json:"disclosure,omitempty"`
}

// Stats are the per-visit scrape counters. For any run that does not hit the
// scrape cap, Detected equals the sum of Scraped and the exclusion counters.
type Stats struct {
	Detected              int `json:"nDetectedAds"`
	Scraped               int `json:"nAdsScraped"`
	ExcludedSmall         int `json:"nSmallAds"`
	ExcludedEmpty         int `json:"nEmptyAds"`
	ExcludedNoBoundingBox int `json:"nNoBoundingBoxAds"`
	DisclosureClicks      int `json:"nDisclosureLinksClicked"`
	DisclosuresMatched    int `json:"nDisclosuresMatched"`
	DisclosuresUnmatched  int `json:"nDisclosuresUnmatched"`
}

// Data is the ad collector's final payload for one visit.
type Data struct {
	Stats                Stats               `json:"scrapeStatistics"`
	Ads                  []ScrapedAd         `json:"scrapedAds"`
	VisitedLandingURLs   []string            `json:"visitedLandingUrls"`
	UnmatchedDisclosures []DisclosureContent `json:"unmatchedDisclosures"`
}
