package types

import "sort"

// CalendarCell is one day cell of a rendered calendar page.
type CalendarCell struct {
	Date      Date     `json:"date"`
	Available bool     `json:"available"`
	Enabled   bool     `json:"enabled"`
	Location  Location `json:"location"`

	// Selector optionally identifies the cell in the page DOM so the browser
	// adapter can click it without coordinates.
	Selector string `json:"selector,omitempty"`
}

// Selectable reports whether the cell can be picked at all.
func (c CalendarCell) Selectable() bool {
	return c.Enabled && c.Available
}

// CalendarView is one rendered calendar page.
type CalendarView struct {
	Cells       []CalendarCell `json:"cells"`
	HasNextPage bool           `json:"has_next_page"`
}

// Sorted returns the cells ordered by date. The view itself is not modified.
func (v CalendarView) Sorted() []CalendarCell {
	cells := make([]CalendarCell, len(v.Cells))
	copy(cells, v.Cells)
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].Date.Before(cells[j].Date)
	})
	return cells
}

// LastDate returns the latest date rendered on the page.
func (v CalendarView) LastDate() (Date, bool) {
	if len(v.Cells) == 0 {
		return Date{}, false
	}
	last := v.Cells[0].Date
	for _, c := range v.Cells[1:] {
		if c.Date.After(last) {
			last = c.Date
		}
	}
	return last, true
}
