package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/logging"
)

var log = logging.NewLogger("browser")

// Manager owns the Playwright driver and the single open session.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	opts        Options
	catalog     Catalog
	markup      CalendarMarkup
	threshold   float64
	input       actions.Options
	current     *Session
	initialized bool
}

// NewManager creates a manager. Initialize must be called before Open.
func NewManager(opts Options, catalog Catalog, markup CalendarMarkup, threshold float64, input actions.Options) *Manager {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if markup.Cell == "" {
		markup = DefaultCalendarMarkup()
	}
	return &Manager{
		opts:      opts.withDefaults(),
		catalog:   catalog,
		markup:    markup,
		threshold: threshold,
		input:     input,
	}
}

// Initialize installs (unless skipped) and starts the Playwright driver.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if !m.opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// Open starts a browser on the profile directory of alias and loads the
// start page. Only one session may be open at a time.
func (m *Manager) Open(ctx context.Context, alias string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.current != nil {
		return nil, fmt.Errorf("session for %q is still open", m.current.Alias)
	}

	dir, temporary, err := m.prepareProfile(alias)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		if temporary {
			_ = os.RemoveAll(dir)
		}
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(m.opts.Headless),
		Viewport: &playwright.Size{
			Width:  m.opts.Viewport.Width,
			Height: m.opts.Viewport.Height,
		},
	}
	bctx, err := m.playwright.Chromium.LaunchPersistentContext(dir, launchOpts)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		bctx.Close()
		cleanup()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.opts.Timeout.Milliseconds()))

	if m.opts.StartURL != "" {
		if _, err := page.Goto(m.opts.StartURL); err != nil {
			bctx.Close()
			cleanup()
			return nil, fmt.Errorf("navigation failed: %w", err)
		}
	}

	s := &Session{
		Alias:      alias,
		Context:    bctx,
		Page:       page,
		ProfileDir: dir,
		CreatedAt:  time.Now(),
		temporary:  temporary,
		manager:    m,
	}
	m.current = s
	log.Infof("opened browser for %s (profile %s, temporary=%t)", alias, dir, temporary)
	return s, nil
}

// release is called by Session.Close.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}

// Shutdown closes the open session and stops Playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current != nil {
		_ = current.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// profileName turns an alias into a directory name.
func profileName(alias string) string {
	name := unsafeName.ReplaceAllString(alias, "_")
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name
}

// prepareProfile returns the profile directory for alias and whether it is
// temporary.
func (m *Manager) prepareProfile(alias string) (string, bool, error) {
	if err := os.MkdirAll(m.opts.ProfilesDir, 0700); err != nil {
		return "", false, fmt.Errorf("failed to create profiles directory: %w", err)
	}

	if m.opts.KeepProfiles {
		dir := filepath.Join(m.opts.ProfilesDir, profileName(alias))
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", false, fmt.Errorf("failed to create profile for %s: %w", alias, err)
		}
		return dir, false, nil
	}

	dir, err := os.MkdirTemp(m.opts.ProfilesDir, profileName(alias)+"-")
	if err != nil {
		return "", false, fmt.Errorf("failed to create temporary profile for %s: %w", alias, err)
	}
	if m.opts.TemplateDir != "" {
		if err := copyDir(m.opts.TemplateDir, dir); err != nil {
			_ = os.RemoveAll(dir)
			return "", false, fmt.Errorf("failed to seed profile from template: %w", err)
		}
	}
	return dir, true, nil
}

// copyDir copies the regular files and directories under src into dst.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0700)
		case d.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, 0600)
		default:
			// Sockets and lock symlinks belong to a running browser.
			return nil
		}
	})
}
