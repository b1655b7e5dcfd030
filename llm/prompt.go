package llm

import (
	"encoding/json"
	"fmt"
)

// browserAgentPrompt is the fixed instruction template for the vision model.
// The embedded schema is a request, not a guarantee; parse.go and
// normalize.go reconcile whatever actually comes back.
const browserAgentPrompt = `You are a browser automation agent submitting a software product to a web directory.

You are given a full-page screenshot of the current browser state. Decide the next step.

PRODUCT DATA:
%s

LOGIN CREDENTIALS (may be empty if the directory needs no account):
%s

PREVIOUS STEPS (what you already attempted, in order):
%s

Respond with a single JSON object and nothing else:
{
  "thought": "<one or two sentences describing what you see and what to do next>",
  "status": "CONTINUE" | "DONE" | "FAILED",
  "workflow_state": "<label for the visible page: e.g. LOGIN, FORM, CAPTCHA, CONFIRMATION>",
  "agentql_query": "{ element_name_1, element_name_2 }",
  "actions": [
    {"target_element_name": "element_name_1", "type": "fill", "value": "text to enter"},
    {"target_element_name": "element_name_2", "type": "click"}
  ]
}

Rules:
- "status" is DONE only when the screenshot shows the submission was accepted.
- "status" is FAILED only when submission is impossible (hard captcha, paid listing, broken page).
- Use CONTINUE with an empty "actions" list if the page is still loading and you want to wait.
- Action types: "fill", "click", "press" (value is the key, e.g. "Enter"), "upload" (value is the file path).
- Element names in "agentql_query" must be short snake_case descriptions of form controls.
- Every action target must appear in "agentql_query".`

// renderPrompt embeds the product data, optional credentials, and the
// serialized step history into the template.
func renderPrompt(product map[string]any, credentials map[string]any, history any) (string, error) {
	productJSON, err := json.MarshalIndent(product, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal product data: %w", err)
	}
	if credentials == nil {
		credentials = map[string]any{}
	}
	credentialsJSON, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	if history == nil {
		history = []any{}
	}
	historyJSON, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return fmt.Sprintf(browserAgentPrompt, productJSON, credentialsJSON, historyJSON), nil
}
