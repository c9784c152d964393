// Package config loads booker's settings.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/browser"
	"github.com/entrhq/booker/pkg/control"
	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/perception"
	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/wizard"
)

// Settings represents the configuration of a booker process
type Settings struct {
	// Filesystem locations
	Paths PathsConfig `yaml:"paths"`

	// Operator control listener
	Control ControlConfig `yaml:"control"`

	// Browser sessions and calendar markup
	Browser  browser.Options        `yaml:"browser"`
	Calendar browser.CalendarMarkup `yaml:"calendar"`

	// Perception threshold
	Perception PerceptionConfig `yaml:"perception"`

	// Step polling and reload recovery
	Retry wizard.RetryPolicy `yaml:"retry"`

	// Slot search bounds
	Search SearchConfig `yaml:"search"`

	// Human-like input timing
	Actions actions.Options `yaml:"actions"`

	// Booking confirmation
	Confirmation ConfirmationConfig `yaml:"confirmation"`

	// Queue behaviour
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Profile directory watching
	Watcher WatcherConfig `yaml:"watcher"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`

	// Run artifacts
	Report ReportConfig `yaml:"report"`

	// References overrides the CSS selector of individual visual references.
	References map[string]string `yaml:"references"`

	// Consulates is the known consulate catalog per country. Profiles
	// naming consulates outside it are rejected before login.
	Consulates map[string][]string `yaml:"consulates"`
}

// PathsConfig locates profiles, keys and persistent state
type PathsConfig struct {
	UsersDir       string   `yaml:"users_dir"`
	KeysDir        string   `yaml:"keys_dir"`
	ProfilePattern string   `yaml:"profile_pattern"`
	Exclude        []string `yaml:"exclude"`
	RegistryFile   string   `yaml:"registry_file"`
}

// ControlConfig configures the TCP control listener
type ControlConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// PerceptionConfig configures reference matching
type PerceptionConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// SearchConfig bounds the calendar search
type SearchConfig struct {
	PageBudget  int `yaml:"page_budget"`
	HorizonDays int `yaml:"horizon_days"`
}

// ConfirmationConfig configures the final success observation
type ConfirmationConfig struct {
	Samples     int           `yaml:"samples"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// OrchestratorConfig configures the user queue
type OrchestratorConfig struct {
	IdleInterval time.Duration `yaml:"idle_interval"`
	ExitWhenIdle bool          `yaml:"exit_when_idle"`
}

// WatcherConfig configures profile directory watching
type WatcherConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Dir receives the run log and the JSON-lines event log
	Dir string `yaml:"dir"`

	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// ReportConfig defines run artifact generation
type ReportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// DefaultSettings returns settings suitable for most deployments
func DefaultSettings() *Settings {
	return &Settings{
		Paths: PathsConfig{
			UsersDir:       "users",
			KeysDir:        "keys",
			ProfilePattern: profile.DefaultPattern,
			RegistryFile:   "free_slots.json",
		},
		Control: ControlConfig{
			Enabled:     true,
			Addr:        control.DefaultAddr,
			ReadTimeout: control.DefaultReadTimeout,
		},
		Browser:      browser.DefaultOptions(),
		Calendar:     browser.DefaultCalendarMarkup(),
		Perception:   PerceptionConfig{Threshold: perception.DefaultThreshold},
		Retry:        wizard.DefaultRetryPolicy(),
		Search:       SearchConfig{PageBudget: slots.DefaultPageBudget, HorizonDays: 180},
		Actions:      actions.DefaultOptions(),
		Confirmation: ConfirmationConfig{Samples: 2, SettleDelay: time.Second, MaxAttempts: 10},
		Orchestrator: OrchestratorConfig{IdleInterval: 2 * time.Second},
		Watcher:      WatcherConfig{Enabled: true, Debounce: 500 * time.Millisecond},
		Logging:      LoggingConfig{Level: "info"},
		Report:       ReportConfig{Enabled: true, OutputDir: "reports"},
	}
}

// Load reads settings from path on top of the defaults. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	s.ResolvePaths(filepath.Dir(path))
	return s, nil
}

// ResolvePaths makes every relative path absolute against base.
func (s *Settings) ResolvePaths(base string) {
	for _, p := range []*string{
		&s.Paths.UsersDir,
		&s.Paths.KeysDir,
		&s.Paths.RegistryFile,
		&s.Browser.ProfilesDir,
		&s.Browser.TemplateDir,
		&s.Browser.ScreenshotDir,
		&s.Logging.Dir,
		&s.Report.OutputDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate validates the settings
func (s *Settings) Validate() error {
	if s.Paths.UsersDir == "" {
		return fmt.Errorf("paths.users_dir is required")
	}
	if s.Control.Enabled && s.Control.Addr == "" {
		return fmt.Errorf("control.addr is required when the control listener is enabled")
	}
	if s.Control.ReadTimeout < 0 {
		return fmt.Errorf("control.read_timeout cannot be negative")
	}
	if s.Perception.Threshold <= 0 || s.Perception.Threshold > 1 {
		return fmt.Errorf("perception.threshold must be in (0, 1], got %v", s.Perception.Threshold)
	}
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if s.Retry.ReloadAfter < 0 {
		return fmt.Errorf("retry.reload_after cannot be negative")
	}
	if s.Search.PageBudget < 1 {
		return fmt.Errorf("search.page_budget must be at least 1")
	}
	if s.Search.HorizonDays < 0 {
		return fmt.Errorf("search.horizon_days cannot be negative")
	}
	if s.Actions.TypingMin < 0 || s.Actions.TypingMax < s.Actions.TypingMin {
		return fmt.Errorf("actions.typing_min/typing_max must satisfy 0 <= min <= max")
	}
	if s.Confirmation.Samples < 1 {
		return fmt.Errorf("confirmation.samples must be at least 1")
	}
	if s.Confirmation.MaxAttempts < s.Confirmation.Samples {
		return fmt.Errorf("confirmation.max_attempts (%d) cannot be below confirmation.samples (%d)",
			s.Confirmation.MaxAttempts, s.Confirmation.Samples)
	}
	if s.Orchestrator.IdleInterval < 0 || s.Watcher.Debounce < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if _, err := logging.ParseLevel(s.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}
	if _, err := s.PatternMatcher(); err != nil {
		return err
	}
	catalog := s.Catalog()
	for _, ref := range []string{wizard.RefCalendar, wizard.RefNextPage, wizard.RefSuccess} {
		if _, err := catalog.Selector(ref); err != nil {
			return fmt.Errorf("references: %w", err)
		}
	}
	return nil
}

// Catalog returns the reference catalog with overrides applied.
func (s *Settings) Catalog() browser.Catalog {
	return browser.DefaultCatalog().Merge(s.References)
}

// PatternMatcher returns the profile file matcher.
func (s *Settings) PatternMatcher() (*profile.PatternMatcher, error) {
	var include []string
	if s.Paths.ProfilePattern != "" {
		include = []string{s.Paths.ProfilePattern}
	}
	return profile.NewPatternMatcher(include, s.Paths.Exclude)
}
