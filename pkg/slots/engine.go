package slots

import (
	"context"
	"fmt"

	"github.com/entrhq/booker/pkg/types"
)

// DefaultPageBudget is the number of calendar pages inspected per consulate.
const DefaultPageBudget = 12

// DecisionKind is the outcome of inspecting one calendar page.
type DecisionKind int

const (
	DecisionPick      DecisionKind = iota // DecisionPick selects Decision.Cell.
	DecisionNextPage                      // DecisionNextPage asks for the next calendar page.
	DecisionExhausted                     // DecisionExhausted ends the search with no slot.
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPick:
		return "pick"
	case DecisionNextPage:
		return "next_page"
	default:
		return "exhausted"
	}
}

// Decision is returned by SelectCell.
type Decision struct {
	Kind DecisionKind

	// Cell is set for DecisionPick.
	Cell types.CalendarCell

	// Reason explains DecisionExhausted.
	Reason string
}

// Pick builds a pick decision.
func Pick(cell types.CalendarCell) Decision {
	return Decision{Kind: DecisionPick, Cell: cell}
}

// NextPage builds a next-page decision.
func NextPage() Decision {
	return Decision{Kind: DecisionNextPage}
}

// Exhausted builds an exhausted decision.
func Exhausted(reason string) Decision {
	return Decision{Kind: DecisionExhausted, Reason: reason}
}

// Engine selects calendar cells. Its zero value uses DefaultPageBudget and
// no horizon.
type Engine struct {
	// PageBudget is the maximum number of pages visited, including the first.
	PageBudget int

	// Horizon is the last bookable date. Zero means unbounded.
	Horizon types.Date
}

// NewEngine creates an engine. A non-positive budget selects DefaultPageBudget.
func NewEngine(pageBudget int, horizon types.Date) *Engine {
	if pageBudget <= 0 {
		pageBudget = DefaultPageBudget
	}
	return &Engine{PageBudget: pageBudget, Horizon: horizon}
}

func (e *Engine) budget() int {
	if e.PageBudget <= 0 {
		return DefaultPageBudget
	}
	return e.PageBudget
}

// Satisfiable reports whether any date between the constraints' earliest
// date and the horizon passes the filters. The reason is set when it does not.
func (e *Engine) Satisfiable(c Constraints) (bool, string) {
	if !e.Horizon.IsZero() && c.Earliest.After(e.Horizon) {
		return false, fmt.Sprintf("earliest date %s is after the last bookable date %s", c.Earliest, e.Horizon)
	}
	if _, ok := c.FirstAllowed(e.Horizon); !ok {
		return false, "no date passes the weekday/month filters"
	}
	return true, ""
}

// SelectCell inspects one rendered page. pagesVisited counts the pages seen
// so far, including this one.
//
// The returned cell is never dated before c.Earliest.
func (e *Engine) SelectCell(view types.CalendarView, c Constraints, pagesVisited int) Decision {
	if ok, reason := e.Satisfiable(c); !ok {
		return Exhausted(reason)
	}

	for _, cell := range view.Sorted() {
		if !cell.Selectable() {
			continue
		}
		if !e.Horizon.IsZero() && cell.Date.After(e.Horizon) {
			continue
		}
		if c.Allows(cell.Date) {
			return Pick(cell)
		}
	}

	if last, ok := view.LastDate(); ok && !e.Horizon.IsZero() && !last.Before(e.Horizon) {
		return Exhausted("calendar reached the last bookable date")
	}
	if !view.HasNextPage {
		return Exhausted("no further calendar pages")
	}
	if pagesVisited >= e.budget() {
		return Exhausted(fmt.Sprintf("page budget of %d exhausted", e.budget()))
	}
	return NextPage()
}

// Pager walks the pages of a rendered calendar.
type Pager interface {
	// Current reads the page currently shown.
	Current(ctx context.Context) (types.CalendarView, error)

	// Next advances to the following page.
	Next(ctx context.Context) error
}

// PageVisitor is called for every page read, before the decision for the page
// is acted on. Returning an error ends the search with that error.
type PageVisitor func(ctx context.Context, view types.CalendarView, page int, decision Decision) error

// SearchResult is the final decision of a search and the number of pages read.
type SearchResult struct {
	Decision Decision
	Pages    int
}

// Search walks pages until a cell is picked or the search is exhausted.
// visit may be nil.
func (e *Engine) Search(ctx context.Context, pager Pager, c Constraints, visit PageVisitor) (SearchResult, error) {
	if ok, reason := e.Satisfiable(c); !ok {
		return SearchResult{Decision: Exhausted(reason)}, nil
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return SearchResult{Pages: page - 1}, err
		}

		view, err := pager.Current(ctx)
		if err != nil {
			return SearchResult{Pages: page - 1}, fmt.Errorf("failed to read calendar page %d: %w", page, err)
		}

		decision := e.SelectCell(view, c, page)
		if visit != nil {
			if err := visit(ctx, view, page, decision); err != nil {
				return SearchResult{Decision: decision, Pages: page}, err
			}
		}

		if decision.Kind != DecisionNextPage {
			return SearchResult{Decision: decision, Pages: page}, nil
		}
		if err := pager.Next(ctx); err != nil {
			return SearchResult{Pages: page}, fmt.Errorf("failed to advance calendar past page %d: %w", page, err)
		}
	}
}
