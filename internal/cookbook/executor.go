// Package cookbook replays a cached manual against a live page by direct
// DOM manipulation. Replay is the near-zero-cost fast path: no model calls,
// only locator resolution and page actions.
package cookbook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/locator"
	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/manualstore"
	"github.com/formpilot/formpilot/internal/page"
)

// Replay failure tolerance: abort early once this many steps have failed,
// or once more than half of the attempted steps have.
const maxFailedSteps = 3

// Result summarizes one replay attempt.
type Result struct {
	Success          bool
	ActionsAttempted int
	ActionsSucceeded int
	ActionsVerified  int
	ActionsFailed    int
	CostIncurred     float64
	Err              error
}

// Executor replays manuals and feeds replay outcomes back into the store's
// health scores.
type Executor struct {
	store manualstore.Store
	log   *zap.Logger
}

// New returns a replay executor. store may be nil when health persistence
// is handled elsewhere.
func New(store manualstore.Store, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{store: store, log: log}
}

// Execute replays the manual's steps in order, substituting profile data
// into templated values. Individual step failures are tolerated up to the
// failure budget; the manual's health score is re-blended from the outcome
// and persisted either way. A false Success means "cache miss, escalate",
// never a fault the caller should propagate.
func (e *Executor) Execute(ctx context.Context, p page.Page, m *manual.Manual, userData map[string]string) *Result {
	res := &Result{}
	failedOrders := make(map[int]bool)

	for _, step := range m.OrderedSteps() {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		res.ActionsAttempted++
		if err := e.runStep(ctx, p, step, userData); err != nil {
			res.ActionsFailed++
			failedOrders[step.Order] = true
			e.log.Debug("replay step failed",
				zap.String("manual", m.ID),
				zap.Int("order", step.Order),
				zap.String("action", string(step.Action)),
				zap.Error(err))
			if res.Err == nil {
				res.Err = fmt.Errorf("step %d (%s): %w", step.Order, step.Action, err)
			}
			if res.ActionsFailed >= maxFailedSteps || res.ActionsFailed*2 > res.ActionsAttempted {
				break
			}
			continue
		}
		res.ActionsSucceeded++
		if step.Verification != "" {
			res.ActionsVerified++
		}
	}

	res.Success = res.ActionsAttempted > 0 && res.ActionsFailed == 0 && ctx.Err() == nil

	m.RecordOutcome(res.Success, res.ActionsAttempted, res.ActionsSucceeded, failedOrders)
	m.UpdatedAt = time.Now().UTC()
	if e.store != nil {
		if err := e.store.Save(m); err != nil {
			e.log.Warn("persist replay outcome", zap.String("manual", m.ID), zap.Error(err))
		}
	}
	e.log.Info("manual replay finished",
		zap.String("manual", m.ID),
		zap.Bool("success", res.Success),
		zap.Int("attempted", res.ActionsAttempted),
		zap.Int("failed", res.ActionsFailed),
		zap.Float64("health", m.HealthScore))
	return res
}

func (e *Executor) runStep(ctx context.Context, p page.Page, step manual.Step, userData map[string]string) error {
	value, err := manual.Render(step.Value, userData)
	if err != nil {
		return err
	}

	switch step.Action {
	case manual.ActionNavigate:
		if err := p.Navigate(value); err != nil {
			return err
		}
	case manual.ActionWait:
		ms := step.WaitAfter
		if ms == 0 {
			if n, err := strconv.Atoi(value); err == nil {
				ms = n
			}
		}
		if err := sleep(ctx, ms); err != nil {
			return err
		}
		return nil
	case manual.ActionScroll:
		dy := 600.0
		if n, err := strconv.ParseFloat(value, 64); err == nil && n != 0 {
			dy = n
		}
		if err := p.Scroll(0, dy); err != nil {
			return err
		}
	default:
		resolved, err := locator.Resolve(p, step.Locator)
		if err != nil {
			return err
		}
		if err := act(resolved.Element, step.Action, value); err != nil {
			return err
		}
		if err := verify(resolved.Element, step, value); err != nil {
			return err
		}
	}

	if step.WaitAfter > 0 && step.Action != manual.ActionWait {
		return sleep(ctx, step.WaitAfter)
	}
	return nil
}

func act(el page.Element, action manual.Action, value string) error {
	switch action {
	case manual.ActionClick:
		return el.Click()
	case manual.ActionFill:
		return el.Fill(value)
	case manual.ActionSelect:
		return el.SelectOption(value)
	case manual.ActionCheck:
		return el.SetChecked(true)
	case manual.ActionUncheck:
		return el.SetChecked(false)
	case manual.ActionHover:
		return el.Hover()
	case manual.ActionPress:
		return el.Press(value)
	default:
		return fmt.Errorf("unsupported element action %q", action)
	}
}

// verify checks the action's observable effect where the step asks for it.
func verify(el page.Element, step manual.Step, value string) error {
	if step.Verification != "value" {
		return nil
	}
	got, err := el.InputValue()
	if err != nil {
		return fmt.Errorf("verify value: %w", err)
	}
	if got != value {
		return fmt.Errorf("verify value: got %q, want %q", got, value)
	}
	return nil
}

func sleep(ctx context.Context, ms int) error {
	if ms <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
