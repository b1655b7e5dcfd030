package llm

import (
	"encoding/json"
	"strings"

	"github.com/submitflow/submitflow/types"
)

// rawDecision mirrors the wire schema before normalization. Query and
// actions stay raw until normalize.go reconciles their shape.
type rawDecision struct {
	Thought       string          `json:"thought"`
	Status        string          `json:"status"`
	WorkflowState string          `json:"workflow_state"`
	AgentQLQuery  json.RawMessage `json:"agentql_query"`
	Actions       json.RawMessage `json:"actions"`
}

// ParseDecision turns raw model output into a well-formed Decision. The
// model tends to wrap its JSON in a markdown code fence; that is stripped
// before the strict parse. Parse failures yield a synthesized FAILED
// decision rather than an error, so the loop always receives a decision.
func ParseDecision(responseText string) *types.Decision {
	text := stripFences(responseText)

	var raw rawDecision
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return FailedDecision("could not parse model response as JSON")
	}

	return &types.Decision{
		Thought:       raw.Thought,
		Status:        decisionStatus(raw.Status),
		WorkflowState: raw.WorkflowState,
		Query:         NormalizeQuery(raw.AgentQLQuery),
		RawQuery:      raw.AgentQLQuery,
		Actions:       NormalizeActions(raw.Actions),
	}
}

// FailedDecision synthesizes the decision returned when the model call or
// parse fails: the loop records it and moves on instead of crashing.
func FailedDecision(reason string) *types.Decision {
	return &types.Decision{
		Thought:       reason,
		Status:        types.DecisionFailed,
		WorkflowState: "FAILED",
	}
}

// decisionStatus maps the wire status onto the three-valued signal; anything
// unrecognized counts as FAILED.
func decisionStatus(s string) types.DecisionStatus {
	switch types.DecisionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case types.DecisionContinue:
		return types.DecisionContinue
	case types.DecisionDone:
		return types.DecisionDone
	default:
		return types.DecisionFailed
	}
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}
