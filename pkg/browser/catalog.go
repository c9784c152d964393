package browser

import (
	"fmt"
	"strings"

	"github.com/entrhq/booker/pkg/perception"
	"github.com/entrhq/booker/pkg/wizard"
)

// Catalog maps reference names to CSS selectors. A selector containing "%s"
// takes the reference argument, e.g. "personal.gender:F".
type Catalog map[string]string

// DefaultCatalog returns selectors for the consular booking site.
func DefaultCatalog() Catalog {
	return Catalog{
		wizard.RefLoginEntry:    `a[href*="login"], button.login`,
		wizard.RefLoginKeyFile:  `input[type="file"]`,
		wizard.RefLoginPassword: `input[type="password"]`,
		wizard.RefLoginSubmit:   `form button[type="submit"]`,
		wizard.RefWelcome:       `.user-menu, [data-qa="user-name"]`,
		wizard.RefVisitMenu:     `a[href*="visit"]`,
		wizard.RefVisitBook:     `button[data-qa="book-visit"]`,
		wizard.RefBirthDay:      `input[name="birthDay"]`,
		wizard.RefBirthMonth:    `input[name="birthMonth"]`,
		wizard.RefBirthYear:     `input[name="birthYear"]`,
		wizard.RefGender:        `label[data-value="%s"]`,
		wizard.RefNext:          `button[data-qa="next"]`,
		wizard.RefBack:          `button[data-qa="back"]`,
		wizard.RefService:       `input[name="service"]`,
		wizard.RefPersonName:    `input[name="personName"]`,
		wizard.RefCountry:       `input[name="country"]`,
		wizard.RefConsulate:     `input[name="consulate"]`,
		wizard.RefCalendar:      `.calendar`,
		wizard.RefCalendarDay:   `button[data-view="day"]`,
		wizard.RefNextPage:      `.calendar .next:not(.disabled)`,
		wizard.RefSubmit:        `button[data-qa="confirm"]`,
		wizard.RefSuccess:       `.booking-success`,
	}
}

// Merge returns a copy of c with overrides applied.
func (c Catalog) Merge(overrides map[string]string) Catalog {
	out := make(Catalog, len(c)+len(overrides))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Selector resolves a reference id to a CSS selector.
func (c Catalog) Selector(reference string) (string, error) {
	name, arg := perception.SplitRef(reference)
	sel, ok := c[name]
	if !ok {
		return "", fmt.Errorf("no selector for reference %q", name)
	}
	if !strings.Contains(sel, "%s") {
		if arg != "" {
			return "", fmt.Errorf("reference %q takes no argument", name)
		}
		return sel, nil
	}
	if arg == "" {
		return "", fmt.Errorf("reference %q needs an argument", name)
	}
	return strings.ReplaceAll(sel, "%s", cssString(arg)), nil
}

// cssString escapes s for use inside a double-quoted CSS attribute value.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
