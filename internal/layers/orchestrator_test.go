package layers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/page"
	"github.com/formpilot/formpilot/internal/page/pagetest"
)

// scriptedHand replays a fixed sequence of attempt outcomes and records the
// order it was invoked in.
type scriptedHand struct {
	name    string
	maxCost float64
	steps   []handStep
	i       int
	calls   *[]string
}

type handStep struct {
	att Attempt
	err error
}

func (h *scriptedHand) Name() string { return h.name }

func (h *scriptedHand) MaxAttemptCost(*Context) float64 { return h.maxCost }

func (h *scriptedHand) Attempt(ctx context.Context, lc *Context) (Attempt, error) {
	if h.calls != nil {
		*h.calls = append(*h.calls, h.name)
	}
	h.i++
	if h.i > len(h.steps) {
		return Attempt{}, nil
	}
	s := h.steps[h.i-1]
	return s.att, s.err
}

// classifySequence returns each classification once, repeating the last.
func classifySequence(cls ...Classification) Classifier {
	i := 0
	return func(ctx context.Context, p page.Page) (Classification, error) {
		if i < len(cls)-1 {
			c := cls[i]
			i++
			return c, nil
		}
		return cls[len(cls)-1], nil
	}
}

func alwaysForm() Classifier {
	return classifySequence(Classification{Class: ClassForm})
}

func testContext() *Context {
	return &Context{Page: pagetest.New("https://example.com/apply")}
}

func TestRunSucceedsOnConfirmationPage(t *testing.T) {
	hand := &scriptedHand{name: "dom", steps: []handStep{
		{att: Attempt{Advanced: true, Executed: 3, Verified: 3, Cost: 0}},
	}}
	o := NewOrchestrator([]Hand{hand}, classifySequence(
		Classification{Class: ClassForm},
		Classification{Class: ClassConfirmation},
	), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.True(t, res.Success)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, 1, res.PagesProcessed)
	assert.Equal(t, 3, res.ActionsExecuted)
	assert.False(t, res.Escalated, "the cheapest layer handled everything")
}

func TestRunEscalatesInOrderAndRestartsFromCheapest(t *testing.T) {
	var calls []string
	cheap := &scriptedHand{name: "dom", calls: &calls, steps: []handStep{
		{att: Attempt{}},               // page 1: stuck
		{att: Attempt{Advanced: true}}, // page 2: handles it
	}}
	expensive := &scriptedHand{name: "vision", calls: &calls, steps: []handStep{
		{att: Attempt{Advanced: true, Cost: 0.10}}, // page 1 rescue
	}}
	o := NewOrchestrator([]Hand{cheap, expensive}, classifySequence(
		Classification{Class: ClassForm},
		Classification{Class: ClassForm},
		Classification{Class: ClassConfirmation},
	), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.True(t, res.Success)
	assert.True(t, res.Escalated, "a higher layer made progress")
	assert.Equal(t, []string{"dom", "vision", "dom"}, calls,
		"each new page starts over at the cheapest layer")
	assert.InDelta(t, 0.10, res.TotalCost, 1e-9)
}

func TestRunLayerErrorEscalates(t *testing.T) {
	var calls []string
	broken := &scriptedHand{name: "scripted", calls: &calls, steps: []handStep{
		{att: Attempt{Cost: 0.01}, err: errors.New("backend unreachable")},
	}}
	rescue := &scriptedHand{name: "vision", calls: &calls, steps: []handStep{
		{att: Attempt{Done: true, Cost: 0.10}},
	}}
	o := NewOrchestrator([]Hand{broken, rescue}, alwaysForm(), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"scripted", "vision"}, calls)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "backend unreachable")
	assert.InDelta(t, 0.11, res.TotalCost, 1e-9, "a failed layer's cost is still charged")
}

func TestRunBudgetExhausted(t *testing.T) {
	burner := &scriptedHand{name: "vision", maxCost: 0.2, steps: []handStep{
		{att: Attempt{Advanced: true, Cost: 0.2}},
		{att: Attempt{Advanced: true, Cost: 0.2}},
		{att: Attempt{Advanced: true, Cost: 0.2}},
		{att: Attempt{Advanced: true, Cost: 0.2}},
	}}
	o := NewOrchestrator([]Hand{burner}, alwaysForm(), 0, nil)

	budget := 0.5
	res := o.Run(context.Background(), testContext(), budget)

	assert.False(t, res.Success)
	assert.Equal(t, StateBudgetExhausted, res.State)
	assert.Equal(t, 2, burner.i, "the third call cannot be covered and is never made")
	assert.LessOrEqual(t, res.TotalCost, budget,
		"reported spend stays within the configured budget")
}

func TestRunSkipsLayerTheBudgetCannotCover(t *testing.T) {
	cheap := &scriptedHand{name: "dom"}
	expensive := &scriptedHand{name: "vision", maxCost: 0.2, steps: []handStep{
		{att: Attempt{Advanced: true, Cost: 0.2}},
	}}
	o := NewOrchestrator([]Hand{cheap, expensive}, alwaysForm(), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.1)

	assert.False(t, res.Success)
	assert.Equal(t, StateBudgetExhausted, res.State)
	assert.Equal(t, 1, cheap.i, "the affordable layer still got its chance")
	assert.Zero(t, expensive.i, "the unaffordable layer is never invoked")
	assert.Zero(t, res.TotalCost)
}

func TestRunMaxPagesCeiling(t *testing.T) {
	o := NewOrchestrator([]Hand{alwaysAdvance{}}, alwaysForm(), 3, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.False(t, res.Success)
	assert.Equal(t, StateMaxPages, res.State)
	assert.Equal(t, 3, res.PagesProcessed)
}

type alwaysAdvance struct{}

func (alwaysAdvance) Name() string { return "loop" }

func (alwaysAdvance) MaxAttemptCost(*Context) float64 { return 0 }

func (alwaysAdvance) Attempt(ctx context.Context, lc *Context) (Attempt, error) {
	return Attempt{Advanced: true}, nil
}

func TestRunBlockedPageIsTerminal(t *testing.T) {
	hand := &scriptedHand{name: "dom"}
	o := NewOrchestrator([]Hand{hand}, classifySequence(
		Classification{Class: ClassBlocked},
	), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.False(t, res.Success)
	assert.Equal(t, StateTerminalPage, res.State)
	assert.Zero(t, hand.i, "no layer runs against a blocked page")
}

func TestRunUnresolvedWhenNoLayerProgresses(t *testing.T) {
	stuck1 := &scriptedHand{name: "dom"}
	stuck2 := &scriptedHand{name: "vision"}
	o := NewOrchestrator([]Hand{stuck1, stuck2}, alwaysForm(), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.False(t, res.Success)
	assert.Equal(t, StateUnresolved, res.State)
	assert.Equal(t, 1, stuck1.i)
	assert.Equal(t, 1, stuck2.i, "every layer got its chance before giving up")
}

func TestRunCancelledContext(t *testing.T) {
	hand := &scriptedHand{name: "dom"}
	o := NewOrchestrator([]Hand{hand}, alwaysForm(), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := o.Run(ctx, testContext(), 0.5)

	assert.False(t, res.Success)
	assert.Equal(t, StateUnresolved, res.State)
	assert.Zero(t, hand.i)
}

func TestRunDoneFromCheapestLayerIsNotEscalated(t *testing.T) {
	hand := &scriptedHand{name: "dom", steps: []handStep{
		{att: Attempt{Done: true}},
	}}
	o := NewOrchestrator([]Hand{hand}, alwaysForm(), 0, nil)

	res := o.Run(context.Background(), testContext(), 0.5)

	assert.True(t, res.Success)
	assert.False(t, res.Escalated)
}
