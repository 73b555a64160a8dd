// File: internal/adscraper/download.go
package adscraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// minMediaPx is the minimum rendered dimension for a media element to be
// worth downloading.
const minMediaPx = 30.0

// mapTileHost matches known non-content hosts (Google map tile subdomains)
// whose images pollute the capture set.
var mapTileHost = regexp.MustCompile(`^mts[0-9]\.google\.com$`)

// Downloader fetches ad media best-effort: failures are logged and never
// propagate. Downloads run bounded-parallel behind a shared rate limiter so
// a media-heavy ad cannot hammer its CDN.
type Downloader struct {
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	imgDir      string
	videoDir    string
	urlHash     string
	userAgent   string
	referer     string
	log         *zap.Logger
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	ImgDir      string
	VideoDir    string
	URLHash     string
	UserAgent   string
	Referer     string
	Timeout     time.Duration
	Concurrency int
	RatePerSec  float64
}

// NewDownloader builds a Downloader with sane fallbacks for zero options.
func NewDownloader(opts DownloaderOptions, log *zap.Logger) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 8
	}
	return &Downloader{
		client:      &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Concurrency),
		concurrency: opts.Concurrency,
		imgDir:      opts.ImgDir,
		videoDir:    opts.VideoDir,
		urlHash:     opts.URLHash,
		userAgent:   opts.UserAgent,
		referer:     opts.Referer,
		log:         log.Named("downloads"),
	}
}

// mediaItem is one download candidate with its category suffix and target
// directory.
type mediaItem struct {
	src    string
	suffix string
	dir    string
	w, h   float64
}

// DownloadAd walks one ad's frame results and fetches every eligible image,
// background image, and video. Sources are deduplicated by exact URL within
// the ad.
func (d *Downloader) DownloadAd(ctx context.Context, frames []FrameResult) {
	var items []mediaItem
	seen := make(map[string]struct{})
	add := func(src, suffix, dir string, w, h float64) {
		if !eligibleMediaURL(src) || w < minMediaPx || h < minMediaPx {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		items = append(items, mediaItem{src: src, suffix: suffix, dir: dir, w: w, h: h})
	}

	for _, f := range frames {
		for _, img := range f.Images {
			add(img.Src, "img", d.imgDir, img.Width, img.Height)
		}
		for _, bg := range f.BackgroundImages {
			add(bg.Src, "bgimg", d.imgDir, bg.Width, bg.Height)
		}
		for _, v := range f.Videos {
			add(v.Src, "video", d.videoDir, v.Width, v.Height)
		}
	}
	if len(items) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := d.limiter.Wait(gctx); err != nil {
				return nil
			}
			if err := d.fetch(gctx, item); err != nil {
				d.log.Debug("media download failed",
					zap.String("src", item.src), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Downloader) fetch(ctx context.Context, item mediaItem) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.src, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,video/*,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Sec-Fetch-Dest", "image")
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if d.referer != "" {
		req.Header.Set("Referer", d.referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name := MediaFileName(d.urlHash, item.suffix, item.src)
	out, err := os.Create(filepath.Join(item.dir, name))
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return nil
}

// eligibleMediaURL reports whether a source URL is worth downloading: an
// absolute http(s) URL without embedded whitespace, not a known map-tile
// host.
func eligibleMediaURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\n\r") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" || mapTileHost.MatchString(u.Hostname()) {
		return false
	}
	return true
}

// MediaFileName derives a media filename:
// {urlHash}_{suffix}_{hostname}_{shortHash}_{basename}. The basename is
// truncated to keep paths portable.
func MediaFileName(urlHash, suffix, rawURL string) string {
	host := "unknown"
	base := "media"
	if u, err := url.Parse(rawURL); err == nil {
		if u.Hostname() != "" {
			host = u.Hostname()
		}
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			base = sanitizeFileName(b)
		}
	}
	if len(base) > 32 {
		base = base[:32]
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s", urlHash, suffix, host, shortHash(rawURL), base)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitizeFileName(s string) string {
	return unsafeFileChars.ReplaceAllString(s, "_")
}
