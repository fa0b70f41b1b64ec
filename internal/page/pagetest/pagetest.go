// Package pagetest provides in-memory page.Page and page.Element fakes for
// tests that exercise resolution, replay and layer logic without a browser.
package pagetest

import (
	"errors"
	"time"

	"github.com/formpilot/formpilot/internal/page"
)

// Element is a scriptable page.Element. Zero value is a visible element
// that accepts every action.
type Element struct {
	Attrs   page.ElementInfo
	Hidden  bool
	Content string // returned by Text
	Value   string // current input value; Fill overwrites it
	Err     error  // returned by every interaction when set

	Clicks  int
	Fills   []string
	Selects []string
	Checks  []bool
	Hovers  int
	Pressed []string
}

var _ page.Element = (*Element)(nil)

func (e *Element) Click() error {
	if e.Err != nil {
		return e.Err
	}
	e.Clicks++
	return nil
}

func (e *Element) Fill(text string) error {
	if e.Err != nil {
		return e.Err
	}
	e.Fills = append(e.Fills, text)
	e.Value = text
	return nil
}

func (e *Element) SelectOption(value string) error {
	if e.Err != nil {
		return e.Err
	}
	e.Selects = append(e.Selects, value)
	e.Value = value
	return nil
}

func (e *Element) SetChecked(checked bool) error {
	if e.Err != nil {
		return e.Err
	}
	e.Checks = append(e.Checks, checked)
	return nil
}

func (e *Element) Hover() error {
	if e.Err != nil {
		return e.Err
	}
	e.Hovers++
	return nil
}

func (e *Element) Press(key string) error {
	if e.Err != nil {
		return e.Err
	}
	e.Pressed = append(e.Pressed, key)
	return nil
}

func (e *Element) Text() (string, error)       { return e.Content, e.Err }
func (e *Element) InputValue() (string, error) { return e.Value, e.Err }
func (e *Element) Visible() (bool, error)      { return !e.Hidden, nil }
func (e *Element) Info() (page.ElementInfo, error) {
	return e.Attrs, e.Err
}

// Page is a scriptable page.Page backed by selector maps.
type Page struct {
	CurrentURL string
	// Selectors maps a CSS selector to the elements it matches.
	Selectors map[string][]page.Element
	// XPaths maps an XPath expression to the elements it matches.
	XPaths map[string][]page.Element
	// Points maps {x, y} hit tests to element info.
	Points  map[[2]int]*page.ElementInfo
	Focused *page.ElementInfo

	Navigations []string
	ScrollCount int
	QueryErr    error
}

var _ page.Page = (*Page)(nil)

// New returns an empty fake page.
func New(url string) *Page {
	return &Page{
		CurrentURL: url,
		Selectors:  make(map[string][]page.Element),
		XPaths:     make(map[string][]page.Element),
		Points:     make(map[[2]int]*page.ElementInfo),
	}
}

// Add registers els under a CSS selector.
func (p *Page) Add(css string, els ...page.Element) *Page {
	p.Selectors[css] = append(p.Selectors[css], els...)
	return p
}

// AddXPath registers els under an XPath expression.
func (p *Page) AddXPath(xpath string, els ...page.Element) *Page {
	p.XPaths[xpath] = append(p.XPaths[xpath], els...)
	return p
}

func (p *Page) URL() string { return p.CurrentURL }

func (p *Page) Navigate(url string) error {
	p.Navigations = append(p.Navigations, url)
	p.CurrentURL = url
	return nil
}

func (p *Page) WaitStable(timeout time.Duration) error { return nil }

func (p *Page) Scroll(dx, dy float64) error {
	p.ScrollCount++
	return nil
}

func (p *Page) QueryAll(css string) ([]page.Element, error) {
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	return p.Selectors[css], nil
}

func (p *Page) QueryXPath(xpath string) ([]page.Element, error) {
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	return p.XPaths[xpath], nil
}

func (p *Page) ElementFromPoint(x, y int) (*page.ElementInfo, error) {
	if info, ok := p.Points[[2]int{x, y}]; ok {
		return info, nil
	}
	return nil, errors.New("no element at point")
}

func (p *Page) FocusedElement() (*page.ElementInfo, error) {
	if p.Focused == nil {
		return nil, errors.New("no focused element")
	}
	return p.Focused, nil
}
