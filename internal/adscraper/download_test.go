// File: internal/adscraper/download_test.go

package adscraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEligibleMediaURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://cdn.example/banner.png", true},
		{"http://cdn.example/banner.png", true},
		{"//cdn.example/banner.png", false},
		{"/relative/banner.png", false},
		{"data:image/png;base64,AAAA", false},
		{"https://cdn.example/has space.png", false},
		{"https://mts0.google.com/vt/tile", false},
		{"https://mts9.google.com/vt/tile", false},
		{"https://mts10.google.com/vt/tile", true},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, eligibleMediaURL(tc.url), "url %q", tc.url)
	}
}

func TestMediaFileName(t *testing.T) {
	name := MediaFileName("cafe0123", "img", "https://cdn.example/ads/banner.png")
	parts := strings.Split(name, "_")
	require.GreaterOrEqual(t, len(parts), 5)
	assert.Equal(t, "cafe0123", parts[0])
	assert.Equal(t, "img", parts[1])
	assert.Equal(t, "cdn.example", parts[2])
	assert.Len(t, parts[3], 4) // two-byte hash, hex encoded
	assert.True(t, strings.HasSuffix(name, "banner.png"))
}

func TestMediaFileNameTruncatesLongBasenames(t *testing.T) {
	long := "banner-" + strings.Repeat("x", 80) + ".png"
	name := MediaFileName("cafe0123", "img", "https://cdn.example/"+long)
	parts := strings.Split(name, "_")
	base := parts[len(parts)-1]
	assert.Len(t, base, 32)
	assert.Equal(t, long[:32], base)
}

func TestMediaFileNameDeterministic(t *testing.T) {
	a := MediaFileName("cafe0123", "img", "https://cdn.example/banner.png")
	b := MediaFileName("cafe0123", "img", "https://cdn.example/banner.png")
	c := MediaFileName("cafe0123", "img", "https://cdn.example/other.png")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMediaFileNameUnparseableURL(t *testing.T) {
	name := MediaFileName("cafe0123", "img", "::::")
	assert.True(t, strings.HasPrefix(name, "cafe0123_img_unknown_"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "a_b_c.png", sanitizeFileName("a b/c.png"))
	assert.Equal(t, "banner-1.2.png", sanitizeFileName("banner-1.2.png"))
}

func TestDownloadAdFetchesAndDedups(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "imagebytes")
	}))
	defer srv.Close()

	root := t.TempDir()
	imgDir := filepath.Join(root, dirAdImages)
	videoDir := filepath.Join(root, dirAdVideos)
	require.NoError(t, os.MkdirAll(imgDir, 0o755))
	require.NoError(t, os.MkdirAll(videoDir, 0o755))

	d := NewDownloader(DownloaderOptions{
		ImgDir:   imgDir,
		VideoDir: videoDir,
		URLHash:  "cafe0123",
		Referer:  "https://publisher.example",
	}, zap.NewNop())

	src := srv.URL + "/banner.png"
	frames := []FrameResult{
		{
			FrameURL: "https://ads.example",
			Images:   []Image{{Src: src, Width: 300, Height: 250}},
		},
		{
			FrameURL:         "https://ads.example/nested",
			Images:           []Image{{Src: src, Width: 300, Height: 250}}, // duplicate
			BackgroundImages: []Image{{Src: srv.URL + "/bg.jpg", Width: 100, Height: 100}},
		},
	}
	d.DownloadAd(t.Context(), frames)

	assert.EqualValues(t, 2, hits.Load())
	entries, err := os.ReadDir(imgDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDownloadAdSkipsSmallAndIneligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected fetch of %s", r.URL)
	}))
	defer srv.Close()

	root := t.TempDir()
	imgDir := filepath.Join(root, dirAdImages)
	require.NoError(t, os.MkdirAll(imgDir, 0o755))

	d := NewDownloader(DownloaderOptions{ImgDir: imgDir, VideoDir: root, URLHash: "cafe0123"}, zap.NewNop())
	d.DownloadAd(t.Context(), []FrameResult{{
		FrameURL: "https://ads.example",
		Images: []Image{
			{Src: srv.URL + "/tiny.png", Width: 29, Height: 29},
			{Src: "data:image/gif;base64,AAAA", Width: 300, Height: 250},
			{Src: "/relative.png", Width: 300, Height: 250},
		},
	}})

	entries, err := os.ReadDir(imgDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
