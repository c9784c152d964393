package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/perception"
	"github.com/entrhq/booker/pkg/session"
	"github.com/entrhq/booker/pkg/types"
)

// Session is one open browser bound to a user profile directory.
type Session struct {
	// Alias is the user the session belongs to.
	Alias string

	// Context is the persistent browser context.
	Context playwright.BrowserContext

	// Page is the page the wizard runs in.
	Page playwright.Page

	// ProfileDir is the browser profile directory.
	ProfileDir string

	// CreatedAt is the timestamp when the session was opened.
	CreatedAt time.Time

	temporary bool
	manager   *Manager
	closed    bool
}

// Surface wires the session into the perception and action layers.
func (s *Session) Surface() session.Surface {
	m := s.manager
	page := &pageDriver{page: s.Page, catalog: m.catalog, markup: m.markup}
	return session.Surface{
		Observer:   perception.NewAdapter(page, m.threshold),
		Actor:      actions.NewHumanizer(&Device{page: page}, m.input, 0),
		Calendar:   page,
		Screenshot: s.Screenshot,
	}
}

// Screenshot saves a PNG of the page into the screenshot directory and
// returns its path.
func (s *Session) Screenshot(ctx context.Context, name string) (string, error) {
	dir := s.manager.opts.ScreenshotDir
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, profileName(name)+".png")
	if _, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return path, nil
}

// Close closes the browser and removes a temporary profile. It is safe to
// call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.manager.release(s)

	err := s.Context.Close()
	if s.temporary {
		if rmErr := os.RemoveAll(s.ProfileDir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close session for %s: %w", s.Alias, err)
	}
	log.Infof("closed browser for %s", s.Alias)
	return nil
}

// pageDriver resolves references against the live page.
type pageDriver struct {
	page    playwright.Page
	catalog Catalog
	markup  CalendarMarkup
}

// Locate finds the first visible element for reference. DOM matches are
// exact, so a visible element reports confidence 1.
func (p *pageDriver) Locate(ctx context.Context, reference string, threshold float64) (types.Match, error) {
	if err := ctx.Err(); err != nil {
		return types.Match{}, err
	}
	sel, err := p.catalog.Selector(reference)
	if err != nil {
		return types.Match{}, err
	}

	loc, ok, err := p.center(sel)
	if err != nil {
		return types.Match{}, fmt.Errorf("failed to locate %s: %w", reference, err)
	}
	if !ok {
		return types.Match{Reference: reference}, nil
	}
	return types.Match{Reference: reference, Found: true, Location: loc, Confidence: 1}, nil
}

// center returns the center of the first visible element matching sel.
func (p *pageDriver) center(sel string) (types.Location, bool, error) {
	el := p.page.Locator(sel).First()
	visible, err := el.IsVisible()
	if err != nil || !visible {
		return types.Location{}, false, err
	}
	box, err := el.BoundingBox()
	if err != nil {
		return types.Location{}, false, err
	}
	if box == nil {
		return types.Location{}, false, nil
	}
	return types.Location{X: box.X + box.Width/2, Y: box.Y + box.Height/2}, true, nil
}

// ReadCalendar parses the rendered day grid and resolves the on-screen
// location of every selectable cell.
func (p *pageDriver) ReadCalendar(ctx context.Context) (types.CalendarView, error) {
	content, err := p.page.Content()
	if err != nil {
		return types.CalendarView{}, fmt.Errorf("failed to read page: %w", err)
	}
	view, err := ParseCalendar(content, p.markup)
	if err != nil {
		return types.CalendarView{}, err
	}

	for i := range view.Cells {
		if err := ctx.Err(); err != nil {
			return types.CalendarView{}, err
		}
		cell := &view.Cells[i]
		if !cell.Selectable() {
			continue
		}
		loc, ok, err := p.center(cell.Selector)
		if err != nil {
			return types.CalendarView{}, fmt.Errorf("failed to locate %s: %w", cell.Date, err)
		}
		if !ok {
			// Rendered in the DOM but scrolled away or hidden.
			cell.Enabled = false
			continue
		}
		cell.Location = loc
	}
	return view, nil
}
