// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/parkbook/internal/dates"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Site() SiteConfig
	Booking() BookingConfig
	Retry() RetryConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	SiteCfg    SiteConfig    `mapstructure:"site" yaml:"site"`
	BookingCfg BookingConfig `mapstructure:"booking" yaml:"booking"`
	RetryCfg   RetryConfig   `mapstructure:"retry" yaml:"retry"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Site() SiteConfig       { return c.SiteCfg }
func (c *Config) Booking() BookingConfig { return c.BookingCfg }
func (c *Config) Retry() RetryConfig     { return c.RetryCfg }

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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the driven Chrome instance.
type BrowserConfig struct {
	Headless   bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath   string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args       []string `mapstructure:"args" yaml:"args"`
	// ProfileDir is the pre-authenticated user data directory. ProfileName selects
	// a profile inside it (Chrome's --profile-directory).
	ProfileDir  string `mapstructure:"profile_dir" yaml:"profile_dir"`
	ProfileName string `mapstructure:"profile_name" yaml:"profile_name"`

	WaitTimeout       time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	LedgerTimeout     time.Duration `mapstructure:"ledger_timeout" yaml:"ledger_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SiteConfig describes the booking site and the selectors its pages expose.
type SiteConfig struct {
	URL       string          `mapstructure:"url" yaml:"url"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// SelectorsConfig lists every CSS selector the booking flow depends on.
type SelectorsConfig struct {
	LoginRedirect   string `mapstructure:"login_redirect" yaml:"login_redirect"`
	NavigationFrame string `mapstructure:"navigation_frame" yaml:"navigation_frame"`
	MainFrame       string `mapstructure:"main_frame" yaml:"main_frame"`
	PersonalSpaces  string `mapstructure:"personal_spaces" yaml:"personal_spaces"`
	BookingsTable   string `mapstructure:"bookings_table" yaml:"bookings_table"`
	DateSelect      string `mapstructure:"date_select" yaml:"date_select"`
	AMCheckbox      string `mapstructure:"am_checkbox" yaml:"am_checkbox"`
	PMCheckbox      string `mapstructure:"pm_checkbox" yaml:"pm_checkbox"`
	FloorSelect     string `mapstructure:"floor_select" yaml:"floor_select"`
	SearchButton    string `mapstructure:"search_button" yaml:"search_button"`
	ResultsTable    string `mapstructure:"results_table" yaml:"results_table"`
	BookButton      string `mapstructure:"book_button" yaml:"book_button"`
}

// BookingConfig holds the booking policy for a run.
type BookingConfig struct {
	DatesFile      string   `mapstructure:"dates_file" yaml:"dates_file"`
	ExclusionsFile string   `mapstructure:"exclusions_file" yaml:"exclusions_file"`
	Weekdays       []string `mapstructure:"weekdays" yaml:"weekdays"`
	Floors         []int    `mapstructure:"floors" yaml:"floors"`
	SameDayCutoff  string   `mapstructure:"same_day_cutoff" yaml:"same_day_cutoff"`
	// Timezone anchors "today" for the cutoff. Empty means the local zone.
	Timezone           string        `mapstructure:"timezone" yaml:"timezone"`
	RestrictedKeywords []string      `mapstructure:"restricted_keywords" yaml:"restricted_keywords"`
	MaxAttempts        int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Seed               int64         `mapstructure:"seed" yaml:"seed"`
	ResolveRetries     int           `mapstructure:"resolve_retries" yaml:"resolve_retries"`
	ResolveRetryDelay  time.Duration `mapstructure:"resolve_retry_delay" yaml:"resolve_retry_delay"`
}

// Location resolves Timezone.
func (b BookingConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(b.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

// RetryConfig bounds the outer session retry loop.
type RetryConfig struct {
	TimeBudget time.Duration `mapstructure:"time_budget" yaml:"time_budget"`
	Delay      time.Duration `mapstructure:"delay" yaml:"delay"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
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
	v.SetDefault("logger.service_name", "parkbook")
	v.SetDefault("logger.log_file", "parkbook.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.profile_name", "")
	v.SetDefault("browser.wait_timeout", "20s")
	v.SetDefault("browser.ledger_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "60s")

	// -- Site --
	v.SetDefault("site.url", "https://gww.condecosoftware.com")
	v.SetDefault("site.selectors.login_redirect", "input#btnRedirectID")
	v.SetDefault("site.selectors.navigation_frame", "iframe#leftNavigation")
	v.SetDefault("site.selectors.main_frame", "iframe#mainDisplayFrame")
	v.SetDefault("site.selectors.personal_spaces", "em.fa-light.fa-lamp-desk")
	v.SetDefault("site.selectors.bookings_table", "table#tab_bookingsPanel_tabPanel_deskBookings_welcomeBookedDesksUser")
	v.SetDefault("site.selectors.date_select", "select#startDate")
	v.SetDefault("site.selectors.am_checkbox", "input#AM")
	v.SetDefault("site.selectors.pm_checkbox", "input#PM")
	v.SetDefault("site.selectors.floor_select", "select#floorNum")
	v.SetDefault("site.selectors.search_button", "input#roomSearchButton")
	v.SetDefault("site.selectors.results_table", "table#tab_bookingsPanel_tabPanel_searchResults_deskSearchResultsGrid")
	v.SetDefault("site.selectors.book_button", "input[value='Book']")

	// -- Booking --
	v.SetDefault("booking.dates_file", "dates.txt")
	v.SetDefault("booking.exclusions_file", "exclusions.txt")
	v.SetDefault("booking.weekdays", []string{})
	v.SetDefault("booking.floors", []int{3, 4})
	v.SetDefault("booking.same_day_cutoff", "08:30")
	v.SetDefault("booking.timezone", "")
	v.SetDefault("booking.restricted_keywords", []string{"disability", "priority"})
	v.SetDefault("booking.max_attempts", 3)
	v.SetDefault("booking.seed", 0)
	v.SetDefault("booking.resolve_retries", 3)
	v.SetDefault("booking.resolve_retry_delay", "2s")

	// -- Retry --
	v.SetDefault("retry.time_budget", "10m")
	v.SetDefault("retry.delay", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The profile path and site differ per machine, so they can come straight from the environment.
	_ = v.BindEnv("browser.profile_dir", "PARKBOOK_PROFILE_DIR")
	_ = v.BindEnv("site.url", "PARKBOOK_SITE_URL")

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
	if strings.TrimSpace(c.SiteCfg.URL) == "" {
		return fmt.Errorf("site.url is a required configuration field")
	}
	if c.BrowserCfg.WaitTimeout <= 0 || c.BrowserCfg.LedgerTimeout <= 0 || c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout, browser.ledger_timeout and browser.navigation_timeout must be positive durations")
	}
	if err := c.BookingCfg.Validate(); err != nil {
		return fmt.Errorf("booking configuration invalid: %w", err)
	}
	if c.RetryCfg.TimeBudget <= 0 {
		return fmt.Errorf("retry.time_budget must be a positive duration")
	}
	if c.RetryCfg.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative")
	}
	return nil
}

// Validate checks the booking policy.
func (b *BookingConfig) Validate() error {
	if len(b.Floors) == 0 {
		return fmt.Errorf("floors must list at least one floor")
	}
	for _, f := range b.Floors {
		if f <= 0 {
			return fmt.Errorf("floor %d is not a valid floor number", f)
		}
	}
	if b.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if b.ResolveRetries < 0 {
		return fmt.Errorf("resolve_retries must not be negative")
	}
	if _, err := dates.ParseCutoff(b.SameDayCutoff); err != nil {
		return err
	}
	if _, err := dates.ParseWeekdays(b.Weekdays); err != nil {
		return err
	}
	if _, err := b.Location(); err != nil {
		return err
	}
	return nil
}
