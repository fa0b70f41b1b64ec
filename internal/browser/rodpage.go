package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/formpilot/formpilot/internal/page"
)

// Page adapts a rod page to the page.Page driver interface.
type Page struct {
	page *rod.Page
}

var _ page.Page = (*Page)(nil)

func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return err
	}
	return p.page.WaitLoad()
}

// WaitStable waits for load, then for network activity to settle. SPAs get
// extra time for interactive elements to hydrate.
func (p *Page) WaitStable(timeout time.Duration) error {
	if err := p.page.WaitLoad(); err != nil {
		return err
	}
	// Bounded request-idle wait so persistent connections don't hang us.
	p.page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	waitForInteractiveElements(p.page, timeout)
	return nil
}

func (p *Page) Scroll(dx, dy float64) error {
	return p.page.Mouse.Scroll(dx, dy, 5)
}

func (p *Page) QueryAll(css string) ([]page.Element, error) {
	els, err := p.page.Elements(css)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (p *Page) QueryXPath(xpath string) ([]page.Element, error) {
	els, err := p.page.ElementsX(xpath)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (p *Page) ElementFromPoint(x, y int) (*page.ElementInfo, error) {
	obj, err := p.page.Eval(`(x, y) => {
		`+describeElementJS+`
		return describe(document.elementFromPoint(x, y));
	}`, x, y)
	if err != nil {
		return nil, err
	}
	return infoFromEval(obj)
}

func (p *Page) FocusedElement() (*page.ElementInfo, error) {
	obj, err := p.page.Eval(`() => {
		` + describeElementJS + `
		return describe(document.activeElement);
	}`)
	if err != nil {
		return nil, err
	}
	return infoFromEval(obj)
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot() ([]byte, error) {
	quality := 90
	return p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatPng,
		Quality: &quality,
	})
}

func wrap(els rod.Elements) []page.Element {
	out := make([]page.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out
}

// element adapts a rod element to page.Element.
type element struct {
	el *rod.Element
}

var _ page.Element = (*element)(nil)

func (e *element) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Fill(text string) error {
	if err := e.el.SelectAllText(); err != nil {
		return err
	}
	return e.el.Input(text)
}

func (e *element) SelectOption(value string) error {
	return e.el.Select([]string{value}, true, rod.SelectorTypeText)
}

func (e *element) SetChecked(checked bool) error {
	prop, err := e.el.Property("checked")
	if err != nil {
		return err
	}
	if prop.Bool() == checked {
		return nil
	}
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Hover() error {
	return e.el.Hover()
}

func (e *element) Press(key string) error {
	if err := e.el.Focus(); err != nil {
		return err
	}
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return e.el.Type(k)
}

func (e *element) Text() (string, error) {
	return e.el.Text()
}

func (e *element) InputValue() (string, error) {
	prop, err := e.el.Property("value")
	if err != nil {
		return "", err
	}
	return prop.Str(), nil
}

func (e *element) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *element) Info() (page.ElementInfo, error) {
	obj, err := e.el.Eval(`function() {
		` + describeElementJS + `
		return describe(this);
	}`)
	if err != nil {
		return page.ElementInfo{}, err
	}
	info, err := infoFromEval(obj)
	if err != nil {
		return page.ElementInfo{}, err
	}
	return *info, nil
}

func keyFor(name string) (input.Key, error) {
	switch name {
	case "Enter":
		return input.Enter, nil
	case "Tab":
		return input.Tab, nil
	case "Escape":
		return input.Escape, nil
	case "Backspace":
		return input.Backspace, nil
	case "ArrowDown":
		return input.ArrowDown, nil
	case "ArrowUp":
		return input.ArrowUp, nil
	}
	runes := []rune(name)
	if len(runes) == 1 {
		return input.Key(runes[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// waitForInteractiveElements polls until interactive elements appear or the
// timeout elapses.
func waitForInteractiveElements(p *rod.Page, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		obj, err := p.Eval(`() => {
			const sels = 'button, [role="button"], input:not([type="hidden"]), textarea, select, a[href]';
			let visible = 0;
			document.querySelectorAll(sels).forEach(el => { if (el.offsetParent) visible++; });
			return visible;
		}`)
		if err == nil && obj.Value.Int() > 0 {
			time.Sleep(300 * time.Millisecond)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
