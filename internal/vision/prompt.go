package vision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are a web form automation assistant. Your task is to fill out and advance a form (typically a job application) using the applicant's profile data.

You will receive:
1. A page map containing the URL, title, and available interactive elements (inputs, selects, buttons, links)
2. The applicant's profile data as field/value pairs
3. Optionally, a screenshot of the current page

Output a JSON array of actions. Each action has:
- "action": one of "fill", "click", "select", "check", "scroll", "wait", "navigate"
- "selector": CSS selector for the target element (required for fill, click, select, check)
- "text": value to enter (required for fill and select; use the profile data verbatim)
- "url": URL for navigate
- "wait": milliseconds to wait after the action (optional)
- "done": boolean, set to true on the FINAL action once the form has been submitted or the task is complete

Guidelines:
- Use only selectors from the provided page map
- Fill every field the profile has data for; leave fields with no matching profile data untouched
- Never invent profile values
- Click the button that advances the form (next/continue/submit) as the LAST action of the batch
- Only set "done": true when the visible page shows the task is finished (confirmation/review)
- Add waits of 500-1500ms after actions that trigger page changes

Respond ONLY with the JSON array, no explanation or markdown.`

func buildUserPrompt(req Request) (string, error) {
	snapJSON, err := json.MarshalIndent(req.Snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal page snapshot: %w", err)
	}

	var b strings.Builder
	b.WriteString("Page map:\n")
	b.Write(snapJSON)
	b.WriteString("\n\nApplicant profile:\n")
	fields := make([]string, 0, len(req.Profile))
	for k := range req.Profile {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		fmt.Fprintf(&b, "- %s: %s\n", k, req.Profile[k])
	}
	if req.Goal != "" {
		b.WriteString("\nTask: " + req.Goal + "\n")
	}
	if req.Completed != "" {
		b.WriteString("\nAlready completed on previous pages:\n" + req.Completed + "\n")
	}
	return b.String(), nil
}

// parseActionsJSON extracts a JSON array from a response that may contain
// surrounding text.
func parseActionsJSON(response string) ([]ProposedAction, error) {
	var actions []ProposedAction
	if err := json.Unmarshal([]byte(response), &actions); err == nil {
		return actions, nil
	}

	start := strings.Index(response, "[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	depth := 0
	end := -1
	for i := start; i < len(response) && end == -1; i++ {
		switch response[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("no matching closing bracket found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &actions); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return actions, nil
}
