package layers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
)

const fieldSelector = `input:not([type="hidden"]):not([type="submit"]):not([type="button"]), textarea, select`
const buttonSelector = `button, input[type="submit"], [role="button"]`

var advanceWords = []string{"next", "continue", "submit", "apply", "save", "review"}

// DOMLayer fills form fields whose observable attributes match profile
// field names and clicks the button that advances the form. No model calls:
// this layer is free.
type DOMLayer struct{}

func (DOMLayer) Name() string { return "dom" }

func (DOMLayer) MaxAttemptCost(*Context) float64 { return 0 }

// Attempt matches visible fields against the profile, fills what it can and
// advances. It reports Advanced only when it both filled something and
// found an advance button, so harder pages escalate instead of looping.
func (DOMLayer) Attempt(ctx context.Context, lc *Context) (Attempt, error) {
	att := Attempt{}
	log := lc.logger()

	fields, err := lc.Page.QueryAll(fieldSelector)
	if err != nil {
		return att, err
	}

	filled := 0
	for _, el := range fields {
		if ctx.Err() != nil {
			return att, ctx.Err()
		}
		if v, err := el.Visible(); err != nil || !v {
			continue
		}
		info, err := el.Info()
		if err != nil {
			continue
		}
		key, value := matchProfileField(info, lc.Profile)
		if key == "" {
			continue
		}
		att.Executed++
		if err := fillField(el, info, value); err != nil {
			att.Failed++
			log.Debug("dom fill failed", zap.String("field", key), zap.Error(err))
			continue
		}
		filled++
		if got, err := el.InputValue(); err == nil && got == value {
			att.Verified++
		}
		lc.record(locatorFor(info), actionFor(info), value)
	}

	if filled == 0 {
		return att, nil
	}

	btn, btnInfo, ok := findAdvanceButton(lc.Page)
	if !ok {
		log.Debug("dom layer filled fields but found no advance button", zap.Int("filled", filled))
		return att, nil
	}
	att.Executed++
	if err := btn.Click(); err != nil {
		att.Failed++
		return att, nil
	}
	lc.record(locatorFor(btnInfo), manual.ActionClick, "")
	_ = lc.Page.WaitStable(5 * time.Second)
	att.Advanced = true
	return att, nil
}

// matchProfileField maps an element's attributes onto a profile field name.
// Attribute and field names are normalized (lowercased, non-alphanumerics
// stripped) before comparison.
func matchProfileField(info page.ElementInfo, profile map[string]string) (string, string) {
	candidates := []string{info.Name, info.ID, info.AriaLabel, info.Placeholder, info.TestID}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		norm := normalizeKey(c)
		for field, value := range profile {
			if normalizeKey(field) == norm {
				return field, value
			}
		}
	}
	return "", ""
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeKey(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

func fillField(el page.Element, info page.ElementInfo, value string) error {
	switch {
	case info.Tag == "select":
		return el.SelectOption(value)
	case info.Type == "checkbox" || info.Type == "radio":
		return el.SetChecked(truthy(value))
	default:
		return el.Fill(value)
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "false", "no", "0", "off":
		return false
	}
	return true
}

func findAdvanceButton(p page.Page) (page.Element, page.ElementInfo, bool) {
	buttons, err := p.QueryAll(buttonSelector)
	if err != nil {
		return nil, page.ElementInfo{}, false
	}
	for _, el := range buttons {
		if v, err := el.Visible(); err != nil || !v {
			continue
		}
		info, err := el.Info()
		if err != nil {
			continue
		}
		label := strings.ToLower(info.Text + " " + info.AriaLabel)
		for _, w := range advanceWords {
			if strings.Contains(label, w) {
				return el, info, true
			}
		}
	}
	return nil, page.ElementInfo{}, false
}

func locatorFor(info page.ElementInfo) manual.LocatorDescriptor {
	switch {
	case info.TestID != "":
		return manual.LocatorDescriptor{TestID: info.TestID}
	case info.ID != "":
		return manual.LocatorDescriptor{ID: info.ID}
	case info.Name != "":
		return manual.LocatorDescriptor{Name: info.Name}
	case info.AriaLabel != "":
		return manual.LocatorDescriptor{AriaLabel: info.AriaLabel}
	case info.CSSPath != "":
		return manual.LocatorDescriptor{CSS: info.CSSPath}
	default:
		return manual.LocatorDescriptor{XPath: info.XPath}
	}
}

func actionFor(info page.ElementInfo) manual.Action {
	switch {
	case info.Tag == "select":
		return manual.ActionSelect
	case info.Type == "checkbox" || info.Type == "radio":
		return manual.ActionCheck
	default:
		return manual.ActionFill
	}
}
