package layers

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// State is the orchestrator's terminal (or running) condition.
type State string

const (
	StateRunning         State = "running"
	StateSucceeded       State = "succeeded"
	StateBudgetExhausted State = "budget_exhausted"
	StateTerminalPage    State = "terminal_page"
	StateMaxPages        State = "max_pages_reached"
	StateUnresolved      State = "unresolved"
)

// DefaultMaxPages is the hard safety ceiling on page iterations,
// guaranteeing termination even if a page oscillates between states.
const DefaultMaxPages = 20

// RunResult is the orchestrator's structured outcome.
type RunResult struct {
	Success         bool
	State           State
	PagesProcessed  int
	ActionsExecuted int
	ActionsVerified int
	ActionsFailed   int
	TotalCost       float64
	Escalated       bool
	Errors          []string
}

// Orchestrator drives the ordered layer stack across a multi-page flow.
// Escalation always restarts from the cheapest layer on a new page: most
// pages are simple, and the expensive layer should only run for the
// specific section that needs it.
type Orchestrator struct {
	hands    []Hand
	classify Classifier
	maxPages int
	log      *zap.Logger
}

// NewOrchestrator builds an orchestrator over the given stack, cheapest
// layer first. classify may be nil, defaulting to KeywordClassifier.
func NewOrchestrator(hands []Hand, classify Classifier, maxPages int, log *zap.Logger) *Orchestrator {
	if classify == nil {
		classify = KeywordClassifier
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{hands: hands, classify: classify, maxPages: maxPages, log: log}
}

// Run executes the escalation loop until the task succeeds, the budget can
// no longer cover a needed layer, a terminal page is reached, the page count
// ceiling is hit, or every layer fails on the same page state. A layer is
// only invoked when the remaining budget covers its worst-case cost, so
// TotalCost never exceeds the budget; costs are charged the moment a layer
// returns, regardless of its success.
func (o *Orchestrator) Run(ctx context.Context, lc *Context, budget float64) *RunResult {
	lc.BudgetRemaining = budget
	res := &RunResult{State: StateRunning}

	for res.PagesProcessed < o.maxPages {
		if ctx.Err() != nil {
			res.State = StateUnresolved
			res.Errors = append(res.Errors, ctx.Err().Error())
			return res
		}

		cls, err := o.classify(ctx, lc.Page)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("classify page: %v", err))
		}
		switch cls.Class {
		case ClassConfirmation:
			res.Success = true
			res.State = StateSucceeded
			return res
		case ClassBlocked:
			res.State = StateTerminalPage
			res.Errors = append(res.Errors, "page blocked by login/captcha wall")
			return res
		}

		advanced := false
		budgetShort := false
		for i, hand := range o.hands {
			if need := hand.MaxAttemptCost(lc); lc.BudgetRemaining < need {
				budgetShort = true
				o.log.Debug("layer skipped, budget cannot cover it",
					zap.String("layer", hand.Name()),
					zap.Float64("worst_case_cost", need),
					zap.Float64("budget_remaining", lc.BudgetRemaining))
				continue
			}

			att, err := hand.Attempt(ctx, lc)

			// Cost is charged unconditionally: a partially successful
			// expensive call still spent real money.
			lc.BudgetRemaining -= att.Cost
			lc.CostSpent += att.Cost
			res.TotalCost += att.Cost
			res.ActionsExecuted += att.Executed
			res.ActionsVerified += att.Verified
			res.ActionsFailed += att.Failed
			if i > 0 && (att.Advanced || att.Done) {
				res.Escalated = true
			}

			o.log.Debug("layer attempt",
				zap.String("layer", hand.Name()),
				zap.Bool("advanced", att.Advanced),
				zap.Bool("done", att.Done),
				zap.Float64("cost", att.Cost),
				zap.Float64("budget_remaining", lc.BudgetRemaining),
				zap.Error(err))

			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("layer %s: %v", hand.Name(), err))
				continue // escalate
			}
			if att.Done {
				res.Success = true
				res.State = StateSucceeded
				return res
			}
			if att.Advanced {
				advanced = true
				break // new page state: restart from the cheapest layer
			}
			// advanced=false without error: escalate to the next layer.
		}

		if !advanced {
			if budgetShort {
				res.State = StateBudgetExhausted
				res.Errors = append(res.Errors, "task budget exhausted")
				return res
			}
			res.State = StateUnresolved
			res.Errors = append(res.Errors, "no layer could make progress on the current page")
			return res
		}
		res.PagesProcessed++
	}

	res.State = StateMaxPages
	res.Errors = append(res.Errors, fmt.Sprintf("page ceiling of %d reached", o.maxPages))
	return res
}
