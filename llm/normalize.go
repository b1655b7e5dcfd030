package llm

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/submitflow/submitflow/types"
)

// The model is prompted for a strict schema but does not contractually
// comply: the grounding query arrives as a string, a map of name to label,
// or a list of names, and "actions" as an object or a list. Everything is
// normalized here, at the parsing boundary; the state machine only ever
// sees the canonical shapes.

// NormalizeQuery coerces any of the accepted query shapes into the canonical
// "{ name1, name2 }" string. Already-canonical strings pass through
// unchanged, so the function is idempotent.
func NormalizeQuery(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return normalizeQueryValue(v)
}

func normalizeQueryValue(v any) string {
	switch q := v.(type) {
	case string:
		return strings.TrimSpace(q)
	case map[string]any:
		names := make([]string, 0, len(q))
		for k := range q {
			if k = strings.TrimSpace(k); k != "" {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		return joinQuery(names)
	case []any:
		names := make([]string, 0, len(q))
		for _, item := range q {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
		return joinQuery(names)
	default:
		return ""
	}
}

func joinQuery(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "{ " + strings.Join(names, ", ") + " }"
}

// NormalizeActions coerces the actions payload into a flat list. A single
// object becomes a one-element list; a JSON-encoded string is unwrapped
// first; non-object entries are discarded. Normalizing an already-normalized
// list yields the same value.
func NormalizeActions(raw json.RawMessage) []types.Action {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	// The model sometimes double-encodes the list as a string.
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil
		}
	}

	var items []any
	switch t := v.(type) {
	case map[string]any:
		items = []any{t}
	case []any:
		items = t
	default:
		return nil
	}

	actions := make([]types.Action, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		actions = append(actions, types.Action{
			Target: stringField(obj, "target_element_name"),
			Kind:   types.ActionKind(normalizeKind(stringField(obj, "type"))),
			Value:  obj["value"],
		})
	}
	return actions
}

// normalizeKind folds the upload aliases the model uses onto one kind.
func normalizeKind(kind string) string {
	switch kind {
	case "upload", "upload_file", "set_input_files":
		return string(types.ActionUpload)
	default:
		return kind
	}
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}
