// File: internal/adscraper/disclosure.go
package adscraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// disclosureHosts are the ad-network transparency pages a pop-up tab is
// recognized by. Anything else opened during scraping is either an ad
// landing page or unrelated.
var disclosureHosts = map[string]bool{
	"adssettings.google.com": true,
	"privacy.us.criteo.com":  true,
	"privacy.eu.criteo.com":  true,
}

// disclosureOutLinkAllowlist is the fixed set of link texts harvested from a
// disclosure page.
var disclosureOutLinkAllowlist = []string{
	"See more ads by this advertiser",
	"Report this ad",
}

// IsDisclosureHost reports whether host belongs to a known ad-network
// disclosure page.
func IsDisclosureHost(host string) bool {
	return disclosureHosts[strings.ToLower(host)]
}

// ExtractOutboundLinks parses disclosure-page HTML and returns the anchors
// whose visible text exactly matches the fixed allowlist.
func ExtractOutboundLinks(html string) []OutboundLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []OutboundLink
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		for _, allowed := range disclosureOutLinkAllowlist {
			if text == allowed {
				out = append(out, OutboundLink{Text: text, Href: href})
				return
			}
		}
	})
	return out
}

// IsThirdParty reports whether requestURL belongs to a different registrable
// domain (eTLD+1) than documentURL. Unparseable URLs count as third-party.
func IsThirdParty(documentURL, requestURL string) bool {
	docHost := hostnameOf(documentURL)
	reqHost := hostnameOf(requestURL)
	if docHost == "" || reqHost == "" {
		return true
	}
	docBase, err1 := publicsuffix.EffectiveTLDPlusOne(docHost)
	reqBase, err2 := publicsuffix.EffectiveTLDPlusOne(reqHost)
	if err1 != nil || err2 != nil {
		return docHost != reqHost
	}
	return docBase != reqBase
}

func hostnameOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// handlePopup inspects one pop-up tab opened while scraping. Disclosure
// pages are captured into ad_disclosures/ with their canonical URL, page
// text, and allowlisted outbound links; other pop-ups are treated as ad
// landing pages when ad clicking is active. Focus returns to the primary
// tab afterwards, since exactly one tab can be the foreground context for
// subsequent scrolling and screenshots.
func (a *Collector) handlePopup(ctx context.Context, popupCtx context.Context) error {
	defer a.restorePrimaryFocus(ctx)

	// Give the pop-up a moment to commit its navigation and render.
	a.sleep(ctx, a.popupWait)

	loc, err := a.ops.Location(popupCtx)
	if err != nil {
		return err
	}
	host := hostnameOf(loc)

	if IsDisclosureHost(host) {
		a.capturePopupDisclosure(ctx, popupCtx, loc, host)
		return nil
	}

	if a.clickingEnabled && a.adWasClicked() {
		a.captureLandingPage(ctx, popupCtx, loc)
	}
	return nil
}

func (a *Collector) capturePopupDisclosure(ctx context.Context, popupCtx context.Context, loc, host string) {
	content := DisclosureContent{
		OpenerPageURL: a.pageURL,
		URL:           loc,
	}

	if err := a.ops.Eval(popupCtx, pageTextScript, &content.PageText); err != nil {
		a.log.Debug("disclosure page text unavailable", zap.Error(err))
	}

	// Google's ad-settings page records the canonical clicked URL in a data
	// service request; the page URL itself is a session-scoped redirect.
	if host == "adssettings.google.com" {
		var canonical string
		if err := a.ops.Eval(popupCtx, googleCanonicalScript, &canonical); err == nil && canonical != "" {
			content.URL = canonical
		}
	}

	if shot, err := a.ops.FullScreenshot(popupCtx); err != nil {
		a.log.Debug("disclosure screenshot failed", zap.Error(err))
	} else {
		a.arts.Write(dirAdDisclosures, a.arts.ScreenshotName("disclosure"), shot)
	}

	var html string
	if err := a.ops.Eval(popupCtx, outerHTMLScript, &html); err != nil {
		a.log.Debug("disclosure html unavailable", zap.Error(err))
	} else {
		content.OutboundLinks = ExtractOutboundLinks(html)
		a.arts.Write(dirAdDisclosures, a.arts.HTMLBaseName("disclosure")+".html", []byte(html))
	}

	a.mu.Lock()
	a.disclosures = append(a.disclosures, content)
	a.mu.Unlock()

	a.log.Info("captured ad disclosure page",
		zap.String("host", host), zap.String("url", content.URL))
}

func (a *Collector) captureLandingPage(ctx context.Context, popupCtx context.Context, loc string) {
	if shot, err := a.ops.FullScreenshot(popupCtx); err != nil {
		a.log.Debug("landing page screenshot failed", zap.Error(err))
	} else {
		a.arts.Write(dirLandingPages, a.arts.ScreenshotName("landing"), shot)
	}

	var html string
	if err := a.ops.Eval(popupCtx, outerHTMLScript, &html); err == nil && html != "" {
		base := a.arts.HTMLBaseName("landing")
		a.arts.Write(dirLandingPages, base+".html", []byte(html))
		if mhtml, err := a.ops.CaptureMHTML(popupCtx); err == nil {
			a.arts.Write(dirLandingPages, base+".mhtml", mhtml)
		}
	}

	a.mu.Lock()
	a.landingURLs = append(a.landingURLs, loc)
	a.mu.Unlock()

	a.log.Info("captured ad landing page",
		zap.String("url", loc),
		zap.Bool("thirdParty", IsThirdParty(a.pageURL, loc)))
}

func (a *Collector) restorePrimaryFocus(ctx context.Context) {
	if a.pageCtx == nil {
		return
	}
	if err := a.ops.BringToFront(a.pageCtx); err != nil {
		a.log.Debug("failed to refocus primary tab", zap.Error(err))
	}
}
