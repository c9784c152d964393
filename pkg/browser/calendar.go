package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/entrhq/booker/pkg/types"
)

// CalendarMarkup describes how the site renders its day grid.
type CalendarMarkup struct {
	// Cell selects one day cell.
	Cell string `yaml:"cell"`

	// DateAttr is the cell attribute holding the date.
	DateAttr string `yaml:"date_attr"`

	// DateLayout parses DateAttr values.
	DateLayout string `yaml:"date_layout"`

	// AvailableClass marks cells with free slots.
	AvailableClass string `yaml:"available_class"`

	// DisabledClass marks cells that cannot be clicked.
	DisabledClass string `yaml:"disabled_class"`

	// Next selects the next page control.
	Next string `yaml:"next"`
}

// DefaultCalendarMarkup returns the markup of the consular booking site.
func DefaultCalendarMarkup() CalendarMarkup {
	return CalendarMarkup{
		Cell:           ".calendar [data-date]",
		DateAttr:       "data-date",
		DateLayout:     "2006-01-02",
		AvailableClass: "available",
		DisabledClass:  "disabled",
		Next:           ".calendar .next",
	}
}

// ParseCalendar reads the day grid out of a page's HTML. Cells carry a
// Selector but no Location; the page resolves locations separately.
func ParseCalendar(content string, m CalendarMarkup) (types.CalendarView, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return types.CalendarView{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var (
		view    types.CalendarView
		cellErr error
	)
	doc.Find(m.Cell).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, ok := s.Attr(m.DateAttr)
		if !ok {
			return true
		}
		t, err := time.Parse(m.DateLayout, strings.TrimSpace(raw))
		if err != nil {
			cellErr = fmt.Errorf("calendar cell has invalid %s %q: %w", m.DateAttr, raw, err)
			return false
		}
		view.Cells = append(view.Cells, types.CalendarCell{
			Date:      types.DateOf(t),
			Available: m.AvailableClass != "" && s.HasClass(m.AvailableClass),
			Enabled:   !disabled(s, m.DisabledClass),
			Selector:  fmt.Sprintf(`%s[%s="%s"]`, m.Cell, m.DateAttr, cssString(raw)),
		})
		return true
	})
	if cellErr != nil {
		return types.CalendarView{}, cellErr
	}

	if m.Next != "" {
		next := doc.Find(m.Next).First()
		view.HasNextPage = next.Length() > 0 && !disabled(next, m.DisabledClass)
	}
	return view, nil
}

func disabled(s *goquery.Selection, class string) bool {
	if class != "" && s.HasClass(class) {
		return true
	}
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	v, _ := s.Attr("aria-disabled")
	return v == "true"
}
