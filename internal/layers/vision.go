package layers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
	"github.com/formpilot/formpilot/internal/vision"
)

// visionCallCost is charged per model round-trip.
const visionCallCost = 0.10

// maxScreenshotWidth bounds the image shipped with a vision request.
const maxScreenshotWidth = 1024

// VisionLayer is the most capable and most expensive tier: it sends a page
// snapshot plus a downscaled screenshot to a vision model and executes the
// returned action batch directly against the page.
type VisionLayer struct {
	Provider vision.Provider
	// Snapshot and Screenshot are injected so the layer does not depend on
	// a concrete browser; internal/browser supplies the real ones.
	Snapshot   func(p page.Page) (*page.Snapshot, error)
	Screenshot func(p page.Page) ([]byte, error)
}

func (VisionLayer) Name() string { return "vision" }

func (VisionLayer) MaxAttemptCost(*Context) float64 { return visionCallCost }

func (l VisionLayer) Attempt(ctx context.Context, lc *Context) (Attempt, error) {
	att := Attempt{}
	if l.Provider == nil || l.Snapshot == nil {
		return att, fmt.Errorf("vision layer: not configured")
	}
	// Respect the budget before committing to a model call; the
	// orchestrator charges the cost either way once we return it.
	if lc.BudgetRemaining < visionCallCost {
		return att, nil
	}
	log := lc.logger()

	snap, err := l.Snapshot(lc.Page)
	if err != nil {
		return att, fmt.Errorf("vision snapshot: %w", err)
	}

	var screenshot []byte
	if l.Screenshot != nil {
		if raw, err := l.Screenshot(lc.Page); err == nil {
			if small, err := vision.DownscalePNG(raw, maxScreenshotWidth); err == nil {
				screenshot = small
			}
		}
	}

	proposals, err := l.Provider.ProposeActions(ctx, vision.Request{
		Snapshot:   snap,
		Profile:    lc.Profile,
		Goal:       lc.Goal,
		Screenshot: screenshot,
	})
	att.Cost += visionCallCost
	if lc.Tracker != nil {
		lc.Tracker.RecordModeStep("vision")
	}
	if err != nil {
		return att, err
	}
	if len(proposals) == 0 {
		return att, nil
	}

	done := false
	succeeded := 0
	for _, pa := range proposals {
		if ctx.Err() != nil {
			return att, ctx.Err()
		}
		att.Executed++
		if err := l.execute(ctx, lc, pa); err != nil {
			att.Failed++
			log.Debug("vision action failed",
				zap.String("action", pa.Type),
				zap.String("selector", pa.Selector),
				zap.Error(err))
			continue
		}
		succeeded++
		if pa.Done {
			done = true
		}
	}

	att.Advanced = succeeded > 0
	att.Done = done
	if att.Advanced {
		_ = lc.Page.WaitStable(5 * time.Second)
	}
	return att, nil
}

func (l VisionLayer) execute(ctx context.Context, lc *Context, pa vision.ProposedAction) error {
	switch pa.Type {
	case "navigate":
		if err := lc.Page.Navigate(pa.URL); err != nil {
			return err
		}
		lc.record(manual.LocatorDescriptor{}, manual.ActionNavigate, pa.URL)
	case "scroll":
		dy := 600.0
		if n, err := strconv.ParseFloat(pa.Text, 64); err == nil && n != 0 {
			dy = n
		}
		if err := lc.Page.Scroll(0, dy); err != nil {
			return err
		}
	case "wait":
		// Handled by the trailing wait below.
	case "fill", "click", "select", "check":
		el, err := firstVisible(lc.Page, pa.Selector)
		if err != nil {
			return err
		}
		switch pa.Type {
		case "fill":
			if err := el.Fill(pa.Text); err != nil {
				return err
			}
			lc.record(manual.LocatorDescriptor{CSS: pa.Selector}, manual.ActionFill, pa.Text)
		case "click":
			if err := el.Click(); err != nil {
				return err
			}
			lc.record(manual.LocatorDescriptor{CSS: pa.Selector}, manual.ActionClick, "")
		case "select":
			if err := el.SelectOption(pa.Text); err != nil {
				return err
			}
			lc.record(manual.LocatorDescriptor{CSS: pa.Selector}, manual.ActionSelect, pa.Text)
		case "check":
			if err := el.SetChecked(true); err != nil {
				return err
			}
			lc.record(manual.LocatorDescriptor{CSS: pa.Selector}, manual.ActionCheck, "")
		}
	default:
		return fmt.Errorf("unknown proposed action %q", pa.Type)
	}

	if pa.Wait > 0 {
		timer := time.NewTimer(time.Duration(pa.Wait) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func firstVisible(p page.Page, selector string) (page.Element, error) {
	els, err := p.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if v, err := el.Visible(); err == nil && v {
			return el, nil
		}
	}
	return nil, fmt.Errorf("no visible element for %q", selector)
}
