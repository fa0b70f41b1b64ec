// Package vision is the top tier of the escalation stack: it ships a page
// snapshot (and optionally a downscaled screenshot) to a vision-capable
// model and gets back a JSON batch of concrete form actions.
package vision

import (
	"context"
	"fmt"

	"github.com/formpilot/formpilot/internal/page"
)

// Request is one action-generation call.
type Request struct {
	Snapshot   *page.Snapshot
	Profile    map[string]string
	Goal       string
	Screenshot []byte // optional PNG, already downscaled
	// Completed summarizes actions already performed on previous pages so
	// the model does not repeat them.
	Completed string
}

// ProposedAction is the model's output vocabulary. Field names match the
// wire format the prompt specifies.
type ProposedAction struct {
	Type     string `json:"action"` // click, fill, select, check, scroll, wait, navigate
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Wait     int    `json:"wait,omitempty"` // ms after the action
	Done     bool   `json:"done,omitempty"` // task complete after this action
}

// Provider generates form actions from a page snapshot.
type Provider interface {
	ProposeActions(ctx context.Context, req Request) ([]ProposedAction, error)
}

// NewProvider creates a provider by name.
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}
