// Package adapter declares the automation-backend contracts the engine
// consumes, and the ActMutex that serializes calls into backends that
// cannot cancel an in-flight call.
package adapter

import (
	"context"

	"github.com/formpilot/formpilot/internal/page"
)

// ActResult is the outcome of one natural-language act() call.
type ActResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DurationMs int64  `json:"durationMs"`
}

// ObservedElement is one element reported by observe().
type ObservedElement struct {
	Selector    string `json:"selector"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Adapter is the mid-tier automation backend: scripted natural-language
// interaction plus direct page access. Implementations live outside this
// core.
type Adapter interface {
	Act(ctx context.Context, instruction string) (*ActResult, error)
	Extract(ctx context.Context, instruction string, out any) error
	Observe(ctx context.Context, instruction string) ([]ObservedElement, error)
	Navigate(ctx context.Context, url string) error
	Page() page.Page
}

// CostTracker is the caller-owned budget ledger the engine reports into.
type CostTracker interface {
	RecordAction()
	RecordModeStep(mode string)
	SetMode(mode string)
	RemainingBudget() float64
}
