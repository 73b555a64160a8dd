// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Output() OutputConfig
	Ads() AdsConfig
	Visit() VisitConfig
	SetVisitConfig(vc VisitConfig)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)
	SetBrowserMobile(bool)

	// Network Setters
	SetNetworkMaxLoadTime(d time.Duration)
	SetNetworkExtraExecutionTime(d time.Duration)

	// Ads Setters
	SetAdsEnableClicking(bool)

	// Output Setters
	SetOutputDir(string)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	OutputCfg  OutputConfig  `mapstructure:"output" yaml:"output"`
	AdsCfg     AdsConfig     `mapstructure:"ads" yaml:"ads"`
	// VisitCfg gets its marching orders from CLI flags, not the config file.
	VisitCfg VisitConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Output() OutputConfig   { return c.OutputCfg }
func (c *Config) Ads() AdsConfig         { return c.AdsCfg }
func (c *Config) Visit() VisitConfig     { return c.VisitCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetVisitConfig(vc VisitConfig) { c.VisitCfg = vc }

// Browser Setters
func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string) { c.BrowserCfg.ExecPath = p }
func (c *Config) SetBrowserMobile(b bool)     { c.BrowserCfg.Mobile = b }

// Network Setters
func (c *Config) SetNetworkMaxLoadTime(d time.Duration)        { c.NetworkCfg.MaxLoadTime = d }
func (c *Config) SetNetworkExtraExecutionTime(d time.Duration) { c.NetworkCfg.ExtraExecutionTime = d }

// Ads Setters
func (c *Config) SetAdsEnableClicking(b bool) { c.AdsCfg.EnableClicking = b }

// Output Setters
func (c *Config) SetOutputDir(d string) { c.OutputCfg.Dir = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ViewportConfig defines the emulated screen for a browsing session.
type ViewportConfig struct {
	Width       int64   `mapstructure:"width" yaml:"width"`
	Height      int64   `mapstructure:"height" yaml:"height"`
	DeviceScale float64 `mapstructure:"device_scale" yaml:"device_scale"`
	Touch       bool    `mapstructure:"touch" yaml:"touch"`
}

// BrowserConfig holds settings for the controlled browser instance.
type BrowserConfig struct {
	Headless  bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath  string         `mapstructure:"exec_path" yaml:"exec_path"`
	Mobile    bool           `mapstructure:"mobile" yaml:"mobile"`
	UserAgent string         `mapstructure:"user_agent" yaml:"user_agent"`
	Viewport  ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	ExtraArgs []string       `mapstructure:"extra_args" yaml:"extra_args"`
}

// NetworkConfig tunes navigation and download behavior.
type NetworkConfig struct {
	// MaxLoadTime bounds each page navigation. Pages still loading when it
	// expires are stopped and collected with whatever content arrived.
	MaxLoadTime time.Duration `mapstructure:"max_load_time" yaml:"max_load_time"`
	// ExtraExecutionTime is the settle period after load before collection.
	ExtraExecutionTime  time.Duration `mapstructure:"extra_execution_time" yaml:"extra_execution_time"`
	DownloadTimeout     time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
	DownloadConcurrency int           `mapstructure:"download_concurrency" yaml:"download_concurrency"`
	DownloadRateLimit   float64       `mapstructure:"download_rate_limit" yaml:"download_rate_limit"`
}

// OutputConfig controls where visit artifacts land on disk.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AdsConfig tunes ad detection and scraping.
type AdsConfig struct {
	MaxAdsPerVisit int     `mapstructure:"max_ads_per_visit" yaml:"max_ads_per_visit"`
	MinAdSize      float64 `mapstructure:"min_ad_size" yaml:"min_ad_size"`
	// EnableClicking opens each scraped ad's landing page in a fresh tab.
	EnableClicking bool `mapstructure:"enable_clicking" yaml:"enable_clicking"`
	// DisclosurePopupWait bounds the wait for a disclosure popup to appear
	// after a disclosure control is clicked.
	DisclosurePopupWait time.Duration `mapstructure:"disclosure_popup_wait" yaml:"disclosure_popup_wait"`
	// DisclosureSettle is the grace period for late popups before matching.
	DisclosureSettle time.Duration `mapstructure:"disclosure_settle" yaml:"disclosure_settle"`
	ExtraSelectors   []string      `mapstructure:"extra_selectors" yaml:"extra_selectors"`
}

// VisitConfig holds settings populated from CLI flags for a specific visit job.
type VisitConfig struct {
	URLs   []string
	Output string
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "adscope")
	v.SetDefault("logger.log_file", "adscope.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.mobile", false)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.viewport.device_scale", 1.0)
	v.SetDefault("browser.viewport.touch", false)

	// -- Network --
	v.SetDefault("network.max_load_time", "30s")
	v.SetDefault("network.extra_execution_time", "2500ms")
	v.SetDefault("network.download_timeout", "30s")
	v.SetDefault("network.download_concurrency", 4)
	v.SetDefault("network.download_rate_limit", 8.0)

	// -- Output --
	v.SetDefault("output.dir", "output")

	// -- Ads --
	v.SetDefault("ads.max_ads_per_visit", 10)
	v.SetDefault("ads.min_ad_size", 30.0)
	v.SetDefault("ads.enable_clicking", false)
	v.SetDefault("ads.disclosure_popup_wait", "2s")
	v.SetDefault("ads.disclosure_settle", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.NetworkCfg.MaxLoadTime <= 0 {
		return fmt.Errorf("network.max_load_time must be a positive duration")
	}
	if c.NetworkCfg.DownloadConcurrency <= 0 {
		return fmt.Errorf("network.download_concurrency must be a positive integer")
	}
	if c.AdsCfg.MaxAdsPerVisit <= 0 {
		return fmt.Errorf("ads.max_ads_per_visit must be a positive integer")
	}
	if c.AdsCfg.MinAdSize < 0 {
		return fmt.Errorf("ads.min_ad_size must not be negative")
	}
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive")
	}
	return nil
}

// MaxTotalTime bounds an entire visit, including collection and downloads.
func (n NetworkConfig) MaxTotalTime() time.Duration {
	return 8 * n.MaxLoadTime
}
