// File: cmd/visit.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adscope/adscope/internal/adscraper"
	"github.com/adscope/adscope/internal/collector"
	"github.com/adscope/adscope/internal/config"
	"github.com/adscope/adscope/internal/crawler"
	"github.com/adscope/adscope/internal/observability"
)

// newVisitCmd creates and configures the `visit` command.
func newVisitCmd() *cobra.Command {
	visitCmd := &cobra.Command{
		Use:   "visit [urls...]",
		Short: "Visits the given pages and scrapes the ads they serve",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line flags correctly
			// override values from the config file and environment.
			binds := map[string]string{
				"output.dir":            "output",
				"browser.mobile":        "mobile",
				"browser.headless":      "headless",
				"network.max_load_time": "timeout",
				"ads.max_ads_per_visit": "max-ads",
				"ads.enable_clicking":   "enable-clicking",
			}
			for key, flag := range binds {
				f := cmd.Flags().Lookup(flag)
				if f != nil && f.Changed {
					if err := viper.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			cfg.SetVisitConfig(config.VisitConfig{URLs: args, Output: cfg.OutputCfg.Dir})

			adsCollector := adscraper.New(adscraper.Options{
				Ads:       cfg.Ads(),
				Network:   cfg.Network(),
				Viewport:  crawler.ViewportFor(cfg.Browser()),
				UserAgent: crawler.UserAgentFor(cfg.Browser()),
			}, logger)
			registry := collector.NewRegistry(logger, adsCollector)
			cr := crawler.New(cfg, logger, registry)

			var failed int
			for _, raw := range args {
				target := normalizeURL(raw)
				result, err := cr.Visit(ctx, target)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						logger.Warn("Visit aborted by user signal", zap.String("url", target))
						return fmt.Errorf("aborted")
					}
					logger.Error("Visit failed", zap.String("url", target), zap.Error(err))
					failed++
					continue
				}
				if err := writeVisitResult(cfg.Output().Dir, result); err != nil {
					logger.Error("Could not persist visit result",
						zap.String("url", target), zap.Error(err))
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d visits failed", failed, len(args))
			}
			fmt.Printf("\nVisited %d page(s). Results in %s\n", len(args), cfg.Output().Dir)
			return nil
		},
	}

	visitCmd.Flags().StringP("output", "o", "", "Directory for visit artifacts. (Overrides config/env)")
	visitCmd.Flags().Bool("mobile", false, "Emulate a mobile device. (Overrides config/env)")
	visitCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	visitCmd.Flags().Duration("timeout", 0, "Per-page load budget. (Overrides config/env)")
	visitCmd.Flags().Int("max-ads", 0, "Maximum ads scraped per visit. (Overrides config/env)")
	visitCmd.Flags().Bool("enable-clicking", false, "Open each ad's landing page in a new tab. (Overrides config/env)")

	return visitCmd
}

// normalizeURL ensures the target has a scheme.
func normalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// writeVisitResult persists the visit summary next to its artifacts, under
// the same URL-hash directory the collectors wrote to.
func writeVisitResult(outputDir string, result *crawler.VisitResult) error {
	dir := filepath.Join(outputDir, adscraper.HashURL(result.InitialURL))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "visit.json"), data, 0o644)
}
