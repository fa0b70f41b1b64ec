package layers

import (
	"context"
	"strings"

	"github.com/formpilot/formpilot/internal/page"
)

// PageClass is the coarse page state the orchestrator terminates on.
type PageClass string

const (
	// ClassForm means the page still has work to do.
	ClassForm PageClass = "form"
	// ClassConfirmation means the task's terminal condition was reached.
	ClassConfirmation PageClass = "confirmation"
	// ClassBlocked means a blocker (captcha, login wall) stops automation.
	ClassBlocked PageClass = "blocked"
)

// Classification is a page-state verdict with a confidence in [0,1].
type Classification struct {
	Class      PageClass
	Confidence float64
}

// Classifier decides the coarse state of the current page. Blocker
// detection proper is an external concern; the engine only consumes the
// verdict.
type Classifier func(ctx context.Context, p page.Page) (Classification, error)

var confirmationWords = []string{
	"application submitted", "thank you for applying", "application received",
	"successfully submitted", "application complete",
}

var blockedWords = []string{
	"captcha", "verify you are human", "unusual activity",
	"sign in to continue", "two-factor", "verification code",
}

// KeywordClassifier is the default classifier: a keyword scan over the
// page's visible text. It is deliberately conservative, reporting low
// confidence so callers can swap in a real classifier.
func KeywordClassifier(ctx context.Context, p page.Page) (Classification, error) {
	text, err := bodyText(p)
	if err != nil {
		return Classification{Class: ClassForm, Confidence: 0}, nil
	}
	lower := strings.ToLower(text)
	for _, w := range confirmationWords {
		if strings.Contains(lower, w) {
			return Classification{Class: ClassConfirmation, Confidence: 0.8}, nil
		}
	}
	for _, w := range blockedWords {
		if strings.Contains(lower, w) {
			return Classification{Class: ClassBlocked, Confidence: 0.7}, nil
		}
	}
	return Classification{Class: ClassForm, Confidence: 0.5}, nil
}

func bodyText(p page.Page) (string, error) {
	els, err := p.QueryAll("body")
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", nil
	}
	return els[0].Text()
}
