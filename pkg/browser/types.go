package browser

import "time"

// Options configures the browser side of every session.
type Options struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool `yaml:"headless"`

	// Viewport sets the initial viewport size.
	Viewport Viewport `yaml:"viewport"`

	// Timeout is the default Playwright operation timeout.
	Timeout time.Duration `yaml:"timeout"`

	// StartURL is opened when a session starts.
	StartURL string `yaml:"start_url"`

	// ProfilesDir holds one browser profile directory per user.
	ProfilesDir string `yaml:"profiles_dir"`

	// TemplateDir seeds temporary profiles. Optional.
	TemplateDir string `yaml:"template_dir"`

	// KeepProfiles reuses profile directories across runs.
	KeepProfiles bool `yaml:"keep_profiles"`

	// ScreenshotDir receives failure screenshots.
	ScreenshotDir string `yaml:"screenshot_dir"`

	// SkipInstall assumes the Playwright driver and browsers are present.
	SkipInstall bool `yaml:"skip_install"`
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default values for browser sessions
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 900
	DefaultStartURL       = "https://e-consul.gov.ua/"
)

// DefaultOptions returns the default browser options.
func DefaultOptions() Options {
	return Options{
		Viewport:      Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
		Timeout:       DefaultTimeout,
		StartURL:      DefaultStartURL,
		ProfilesDir:   "profiles",
		ScreenshotDir: "screenshots",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = def.Viewport
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.ProfilesDir == "" {
		o.ProfilesDir = def.ProfilesDir
	}
	if o.ScreenshotDir == "" {
		o.ScreenshotDir = def.ScreenshotDir
	}
	return o
}
