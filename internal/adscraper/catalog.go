// File: internal/adscraper/catalog.go
package adscraper

// adSelectors is the stock catalog of CSS selectors known to match ad
// containers, derived from the general element-hiding rules of public filter
// lists. The catalog is static; extras from configuration are appended at
// detection time.
var adSelectors = []string{
	"#AD_text",
	"#AdContainerTop",
	"#AdvertisingFrame",
	"#HomeAd1",
	"#ad-banner",
	"#ad-bottom",
	"#ad-box-left",
	"#ad-box-right",
	"#ad-container",
	"#ad-footer",
	"#ad-header",
	"#ad-leaderboard",
	"#ad-rectangle",
	"#ad-sidebar",
	"#ad-skyscraper",
	"#ad-slot",
	"#ad-top",
	"#ad-wrap",
	"#adBanner",
	"#adSkyscraper",
	"#adTop",
	"#ad_banner_top",
	"#ad_bottom",
	"#ad_box",
	"#ad_container",
	"#ad_content",
	"#ad_frame",
	"#ad_leaderboard",
	"#ad_sidebar",
	"#ad_slot",
	"#ad_wrapper",
	"#adsense",
	"#adsense-text",
	"#advert-banner",
	"#advert-box",
	"#advertisement",
	"#advertising-banner",
	"#banner-ad",
	"#bannerad",
	"#bottom-ad",
	"#bottomAd",
	"#google_ads_frame1",
	"#google_ads_frame2",
	"#header-ad",
	"#headerAd",
	"#large-banner-ad",
	"#left-ad",
	"#leftAd",
	"#right-ad",
	"#rightAd",
	"#sidebar-ad",
	"#sidebarAd",
	"#sponsored-links",
	"#sponsoredLinks",
	"#top-ad",
	"#topAd",
	".ad-banner",
	".ad-box",
	".ad-button",
	".ad-column",
	".ad-container",
	".ad-footer",
	".ad-header",
	".ad-holder",
	".ad-inner",
	".ad-label",
	".ad-leaderboard",
	".ad-placeholder",
	".ad-placement",
	".ad-rectangle",
	".ad-sidebar",
	".ad-skyscraper",
	".ad-slot",
	".ad-space",
	".ad-unit",
	".ad-wrap",
	".ad-wrapper",
	".adBanner",
	".adBox",
	".adContainer",
	".adHolder",
	".adSlot",
	".adUnit",
	".ad_banner",
	".ad_box",
	".ad_container",
	".ad_slot",
	".adbanner",
	".adbox",
	".adrotate_widget",
	".ads-banner",
	".ads-container",
	".adsbox",
	".adsbygoogle",
	".advert-banner",
	".advert-container",
	".advertisement",
	".advertisement-banner",
	".advertising-banner",
	".banner-ad",
	".bannerAd",
	".gpt-ad",
	".sponsored-ad",
	".sponsored-content",
	".sponsored-links",
	".sponsored-post",
	".text-ad",
	".textAd",
	".top-ad",
	".wide-ad",
	"a[href^=\"https://ad.doubleclick.net/\"]",
	"a[href^=\"https://adclick.g.doubleclick.net/\"]",
	"a[href^=\"https://googleads.g.doubleclick.net/\"]",
	"div[id^=\"div-gpt-ad\"]",
	"div[id^=\"google_ads_iframe\"]",
	"iframe[id^=\"google_ads_frame\"]",
	"iframe[src^=\"https://googleads.g.doubleclick.net/\"]",
	"iframe[src^=\"https://tpc.googlesyndication.com/\"]",
	"ins.adsbygoogle",
}

// extraSelectors are hand-picked patterns for ad platforms the filter-list
// subset misses (Outbrain widgets, Criteo rc_widget slots).
var extraSelectors = []string{
	".ob-widget",
	"[id^=\"rc_widget\"]",
}

// Selectors returns the full catalog: stock selectors, the hand-picked
// extensions, and any caller-supplied extras, in that order.
func Selectors(extras ...string) []string {
	out := make([]string, 0, len(adSelectors)+len(extraSelectors)+len(extras))
	out = append(out, adSelectors...)
	out = append(out, extraSelectors...)
	out = append(out, extras...)
	return out
}
