// Package browser is the go-rod implementation of the page driver: launch
// and settle logic, element queries, action primitives, and the
// interactive-element snapshot used by the scripted and vision layers.
package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options configures the browser session.
type Options struct {
	Width      int
	Height     int
	Headless   bool
	Timeout    time.Duration
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
}

// Browser wraps the rod browser and a single page for one task.
type Browser struct {
	browser *rod.Browser
	page    *Page
}

// Launch starts a browser and opens the URL.
func Launch(url string, opts Options) (*Browser, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	p, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	pg := &Page{page: p}
	if err := pg.WaitStable(opts.Timeout); err != nil {
		b.Close()
		return nil, err
	}
	return &Browser{browser: b, page: pg}, nil
}

// Page returns the driver for the session's page.
func (b *Browser) Page() *Page { return b.page }

// Close tears down the page and browser.
func (b *Browser) Close() {
	if b.page != nil {
		b.page.page.Close()
	}
	if b.browser != nil {
		b.browser.Close()
	}
}
