// File: internal/crawler/constants.go

// Package crawler owns the browser lifecycle for one page visit: launching
// the controlled browser, tracking every browsing context the visit spawns,
// attaching collectors to each exactly once, and assembling the final visit
// result.
package crawler

import "github.com/adscope/adscope/internal/config"

// User agents presented to pages, matching a current desktop and Android
// Chrome.
const (
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Mobile Safari/537.36"
)

// Emulated screens for the two modes.
var (
	desktopViewport = config.ViewportConfig{Width: 1920, Height: 1080, DeviceScale: 1}
	mobileViewport  = config.ViewportConfig{Width: 412, Height: 691, DeviceScale: 2, Touch: true}
)

// browserFlags are the extra switches the controlled browser is always
// launched with. Disabling site isolation and web security lets the ad
// pipeline reach into cross-origin ad frames from the page's main world.
var browserFlags = map[string]any{
	"no-sandbox":           true,
	"disable-web-security": true,
	"disable-features":     "IsolateOrigins,site-per-process",
}

// UserAgentFor returns the UA string for the emulation mode, honoring an
// explicit config override.
func UserAgentFor(cfg config.BrowserConfig) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	if cfg.Mobile {
		return mobileUserAgent
	}
	return desktopUserAgent
}

// ViewportFor returns the emulated screen for the emulation mode. A config
// viewport with explicit dimensions wins for desktop mode.
func ViewportFor(cfg config.BrowserConfig) config.ViewportConfig {
	if cfg.Mobile {
		return mobileViewport
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		return cfg.Viewport
	}
	return desktopViewport
}
