package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DecisionStatus is the continuation signal of one model decision.
type DecisionStatus string

const (
	DecisionContinue DecisionStatus = "CONTINUE"
	DecisionDone     DecisionStatus = "DONE"
	DecisionFailed   DecisionStatus = "FAILED"
)

// ActionKind is the kind of page interaction a decision requests.
type ActionKind string

const (
	ActionFill   ActionKind = "fill"
	ActionClick  ActionKind = "click"
	ActionPress  ActionKind = "press"
	ActionUpload ActionKind = "upload"
)

// Action is one normalized interaction request. Value is a string for fill and
// press; for upload it may be a string path, a list of paths, or an object
// carrying "path"/"paths" (resolved by the executor).
type Action struct {
	Target string     `json:"target_element_name"`
	Kind   ActionKind `json:"type"`
	Value  any        `json:"value,omitempty"`
}

// Decision is the parsed, normalized output of one model call. Query is always
// in the canonical "{ name1, name2 }" form; Actions is always a flat list.
// RawQuery preserves the model's original grounding payload for the action log.
type Decision struct {
	Thought       string          `json:"thought"`
	Status        DecisionStatus  `json:"status"`
	WorkflowState string          `json:"workflow_state"`
	Query         string          `json:"agentql_query"`
	RawQuery      json.RawMessage `json:"-"`
	Actions       []Action        `json:"actions"`
}

// HistoryEntry is one compact record of a completed step, fed back to the
// model on the next call. Append-only and step-ordered.
type HistoryEntry struct {
	Step    int      `json:"step"`
	Thought string   `json:"thought"`
	Actions []Action `json:"actions"`
	Result  string   `json:"result"`
}

// ActionLog is the immutable per-step record of one loop iteration. Rows are
// written before action execution; only Success and Error are backfilled once
// execution for the step concludes.
type ActionLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID      uuid.UUID `gorm:"type:uuid;not null;index:idx_attempt_step,unique" json:"attempt_id"`
	StepNumber     int       `gorm:"not null;index:idx_attempt_step,unique" json:"step_number"`
	ScreenshotPath string    `gorm:"size:500" json:"screenshot_path,omitempty"`
	Thought        string    `gorm:"type:text" json:"llm_thought,omitempty"`
	WorkflowState  string    `gorm:"size:100" json:"workflow_status,omitempty"`
	RawQuery       string    `gorm:"type:text" json:"agentql_query,omitempty"`
	Actions        string    `gorm:"type:text" json:"actions,omitempty"`
	Success        bool      `gorm:"not null;default:false" json:"success"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	ExecutedAt     time.Time `gorm:"autoCreateTime" json:"executed_at"`
}

// SetActions serializes the normalized action list onto the log row.
func (l *ActionLog) SetActions(actions []Action) {
	if len(actions) == 0 {
		l.Actions = "[]"
		return
	}
	b, err := json.Marshal(actions)
	if err != nil {
		l.Actions = "[]"
		return
	}
	l.Actions = string(b)
}

// GetActions deserializes the stored action list.
func (l *ActionLog) GetActions() []Action {
	var actions []Action
	if l.Actions == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(l.Actions), &actions); err != nil {
		return nil
	}
	return actions
}
