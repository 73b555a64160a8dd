// File: cmd/visit_test.go
package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/adscope/internal/adscraper"
	"github.com/adscope/adscope/internal/crawler"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "http://example.com", normalizeURL("http://example.com"))
	assert.Equal(t, "https://example.com/page", normalizeURL("https://example.com/page"))
}

func TestWriteVisitResult(t *testing.T) {
	dir := t.TempDir()
	result := &crawler.VisitResult{
		VisitID:    "test-visit",
		InitialURL: "https://example.com",
		FinalURL:   "https://example.com/",
		Started:    time.Now(),
		Finished:   time.Now(),
	}

	require.NoError(t, writeVisitResult(dir, result))

	path := filepath.Join(dir, adscraper.HashURL(result.InitialURL), "visit.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded crawler.VisitResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "test-visit", decoded.VisitID)
	assert.Equal(t, "https://example.com", decoded.InitialURL)
}

func TestVisitCmdFlags(t *testing.T) {
	cmd := newVisitCmd()
	for _, flag := range []string{"output", "mobile", "headless", "timeout", "max-ads", "enable-clicking"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"example.com"}))
}
