// Package page defines the driver interfaces the engine uses to talk to a
// live browser page. The production implementation wraps go-rod (see
// internal/browser); tests substitute in-memory fakes.
package page

import "time"

// Element is a handle to a single rendered element.
type Element interface {
	Click() error
	Fill(text string) error
	SelectOption(value string) error
	SetChecked(checked bool) error
	Hover() error
	Press(key string) error
	Text() (string, error)
	InputValue() (string, error)
	Visible() (bool, error)
	Info() (ElementInfo, error)
}

// Page is a handle to the current browser page.
type Page interface {
	URL() string
	Navigate(url string) error
	// WaitStable blocks until the page has loaded and network activity has
	// settled, or the timeout elapses.
	WaitStable(timeout time.Duration) error
	Scroll(dx, dy float64) error
	QueryAll(css string) ([]Element, error)
	QueryXPath(xpath string) ([]Element, error)
	// ElementFromPoint hit-tests the viewport coordinate and returns the
	// observable attributes of the topmost element there.
	ElementFromPoint(x, y int) (*ElementInfo, error)
	// FocusedElement returns the attributes of document.activeElement.
	FocusedElement() (*ElementInfo, error)
}

// ElementInfo is the attribute bag extracted from a rendered element. All
// fields are optional; consumers pick the most stable ones available.
type ElementInfo struct {
	Tag         string `json:"tag,omitempty"`
	TestID      string `json:"testId,omitempty"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	CSSPath     string `json:"cssPath,omitempty"`
	XPath       string `json:"xpath,omitempty"`
}

// Snapshot summarizes the interactive surface of a page for the scripted and
// vision layers.
type Snapshot struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Elements []SnapshotElement `json:"elements"`
}

// SnapshotElement is one interactive element in a Snapshot.
type SnapshotElement struct {
	Selector    string `json:"selector"`
	Kind        string `json:"type"` // button, text, link, select, checkbox, radio, ...
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	TestID      string `json:"testId,omitempty"`
	Role        string `json:"role,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
}
