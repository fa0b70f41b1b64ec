// Package locator resolves a multi-strategy element descriptor to a single
// currently rendered element. Strategies are tried in a fixed order that
// favors intentional authoring attributes (test IDs, ARIA) over brittle
// structural selectors; the first strategy yielding exactly one visible
// match wins.
package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
)

// ErrNotFound is returned when no strategy yields a unique visible match.
// Callers treat it as a normal outcome, not a fault.
var ErrNotFound = errors.New("no unique visible element for locator")

// Resolution is a successful resolve: the element and the strategy that
// found it.
type Resolution struct {
	Element  page.Element
	Strategy string
}

type strategy struct {
	name  string
	query func(p page.Page, d manual.LocatorDescriptor) ([]page.Element, error)
	set   func(d manual.LocatorDescriptor) bool
}

var strategies = []strategy{
	{"testId", byCSS(func(d manual.LocatorDescriptor) string {
		return fmt.Sprintf(`[data-testid=%s], [data-test-id=%s]`, cssString(d.TestID), cssString(d.TestID))
	}), func(d manual.LocatorDescriptor) bool { return d.TestID != "" }},
	{"role", byCSS(func(d manual.LocatorDescriptor) string {
		return fmt.Sprintf(`[role=%s]`, cssString(d.Role))
	}), func(d manual.LocatorDescriptor) bool { return d.Role != "" }},
	{"ariaLabel", byCSS(func(d manual.LocatorDescriptor) string {
		return fmt.Sprintf(`[aria-label=%s]`, cssString(d.AriaLabel))
	}), func(d manual.LocatorDescriptor) bool { return d.AriaLabel != "" }},
	{"name", byCSS(func(d manual.LocatorDescriptor) string {
		return fmt.Sprintf(`[name=%s]`, cssString(d.Name))
	}), func(d manual.LocatorDescriptor) bool { return d.Name != "" }},
	{"id", byCSS(func(d manual.LocatorDescriptor) string {
		return fmt.Sprintf(`[id=%s]`, cssString(d.ID))
	}), func(d manual.LocatorDescriptor) bool { return d.ID != "" }},
	{"text", func(p page.Page, d manual.LocatorDescriptor) ([]page.Element, error) {
		return p.QueryXPath(fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathString(d.Text)))
	}, func(d manual.LocatorDescriptor) bool { return d.Text != "" }},
	{"css", func(p page.Page, d manual.LocatorDescriptor) ([]page.Element, error) {
		return p.QueryAll(d.CSS)
	}, func(d manual.LocatorDescriptor) bool { return d.CSS != "" }},
	{"xpath", func(p page.Page, d manual.LocatorDescriptor) ([]page.Element, error) {
		return p.QueryXPath(d.XPath)
	}, func(d manual.LocatorDescriptor) bool { return d.XPath != "" }},
}

// Resolve tries each strategy present on the descriptor in priority order.
// Zero or multiple matches move on to the next strategy rather than
// guessing; exhausting all strategies returns ErrNotFound.
func Resolve(p page.Page, d manual.LocatorDescriptor) (*Resolution, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	for _, st := range strategies {
		if !st.set(d) {
			continue
		}
		els, err := st.query(p, d)
		if err != nil {
			// A malformed selector in one strategy does not doom the rest.
			continue
		}
		visible := make([]page.Element, 0, len(els))
		for _, el := range els {
			if v, err := el.Visible(); err == nil && v {
				visible = append(visible, el)
			}
		}
		if len(visible) == 1 {
			return &Resolution{Element: visible[0], Strategy: st.name}, nil
		}
	}
	return nil, ErrNotFound
}

func byCSS(sel func(manual.LocatorDescriptor) string) func(page.Page, manual.LocatorDescriptor) ([]page.Element, error) {
	return func(p page.Page, d manual.LocatorDescriptor) ([]page.Element, error) {
		return p.QueryAll(sel(d))
	}
}

func cssString(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

func xpathString(v string) string {
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	if !strings.Contains(v, `'`) {
		return `'` + v + `'`
	}
	// Mixed quotes need concat().
	parts := strings.Split(v, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
