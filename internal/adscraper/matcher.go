// File: internal/adscraper/matcher.go
package adscraper

// MatchDisclosures reconciles the disclosure pages captured during a visit
// with the ads whose disclosure control was clicked. Matching is exact
// string equality between the ad's clicked href and the disclosure's
// canonical URL; no fuzzy matching. The pass is order-independent: multiple
// ads with the same clicked href each receive a copy of the matched content,
// and every content that matches no ad lands in the unmatched list exactly
// once.
func MatchDisclosures(ads []ScrapedAd, contents []DisclosureContent) (matched int, unmatched []DisclosureContent) {
	for _, content := range contents {
		hit := false
		for i := range ads {
			if ads[i].ClickedDisclosureHref == "" || ads[i].ClickedDisclosureHref != content.URL {
				continue
			}
			copied := content
			ads[i].Disclosure = &copied
			hit = true
		}
		if hit {
			matched++
		} else {
			unmatched = append(unmatched, content)
		}
	}
	return matched, unmatched
}
