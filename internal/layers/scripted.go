package layers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/manual"
)

// Per-call costs of the scripted backend.
const (
	observeCost = 0.005
	actCost     = 0.01
)

// ScriptedLayer drives the mid-tier adapter: observe the form once, then
// issue one natural-language act() per field plus one to advance. Every
// backend call passes through the adapter's ActMutex because the backend
// cannot cancel an in-flight call.
type ScriptedLayer struct{}

func (ScriptedLayer) Name() string { return "scripted" }

// Worst case: one observe plus one act per profile field plus the advance
// click.
func (ScriptedLayer) MaxAttemptCost(lc *Context) float64 {
	return observeCost + float64(len(lc.Profile)+1)*actCost
}

func (ScriptedLayer) Attempt(ctx context.Context, lc *Context) (Attempt, error) {
	att := Attempt{}
	if lc.Adapter == nil {
		return att, fmt.Errorf("scripted layer: no adapter configured")
	}
	log := lc.logger()

	if lc.Mutex != nil {
		lc.Mutex.Refresh()
	}

	observed, cost, err := observe(ctx, lc, "all fillable form fields and the button that advances the form")
	att.Cost += cost
	if err != nil {
		return att, err
	}

	// Sort profile keys for a deterministic act order.
	fields := make([]string, 0, len(lc.Profile))
	for k := range lc.Profile {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	acted := 0
	for _, field := range fields {
		if ctx.Err() != nil {
			return att, ctx.Err()
		}
		sel := matchObserved(observed, field)
		if sel == "" {
			continue
		}
		value := lc.Profile[field]
		att.Executed++
		cost, err := act(ctx, lc, fmt.Sprintf("enter %q into the element %s", value, sel))
		att.Cost += cost
		if err != nil {
			att.Failed++
			log.Debug("scripted act failed", zap.String("field", field), zap.Error(err))
			continue
		}
		acted++
		lc.record(manual.LocatorDescriptor{CSS: sel}, manual.ActionFill, value)
	}

	if acted == 0 {
		return att, nil
	}

	att.Executed++
	cost, err = act(ctx, lc, "click the button that advances or submits the form (next, continue, submit, apply)")
	att.Cost += cost
	if err != nil {
		att.Failed++
		return att, nil
	}
	_ = lc.Page.WaitStable(5 * time.Second)
	att.Advanced = true
	return att, nil
}

func observe(ctx context.Context, lc *Context, instruction string) ([]observedField, float64, error) {
	if lc.Mutex != nil {
		if err := lc.Mutex.Acquire(); err != nil {
			return nil, 0, err
		}
		defer lc.Mutex.Release()
	}
	els, err := lc.Adapter.Observe(ctx, instruction)
	if err != nil {
		return nil, observeCost, err
	}
	out := make([]observedField, 0, len(els))
	for _, el := range els {
		out = append(out, observedField{
			selector: el.Selector,
			haystack: normalizeKey(el.Description + " " + el.Text + " " + el.Selector),
		})
	}
	return out, observeCost, nil
}

func act(ctx context.Context, lc *Context, instruction string) (float64, error) {
	if lc.Mutex != nil {
		if err := lc.Mutex.Acquire(); err != nil {
			return 0, err
		}
		defer lc.Mutex.Release()
	}
	if lc.Tracker != nil {
		lc.Tracker.RecordAction()
	}
	res, err := lc.Adapter.Act(ctx, instruction)
	if err != nil {
		return actCost, err
	}
	if !res.Success {
		return actCost, fmt.Errorf("act rejected: %s", res.Message)
	}
	return actCost, nil
}

type observedField struct {
	selector string
	haystack string
}

// matchObserved finds the observed element whose description mentions the
// profile field.
func matchObserved(observed []observedField, field string) string {
	norm := normalizeKey(field)
	for _, o := range observed {
		if strings.Contains(o.haystack, norm) {
			return o.selector
		}
	}
	return ""
}
