// internal/redirect/rules/result.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseResult reads a node's outcome label, e.g.
// `action=substitute,address="127.0.0.1"`.
func ParseResult(raw string) ([]Assignment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]Assignment, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", part)
		}

		key := strings.TrimSpace(kv[0])
		if key == "" {
			return nil, fmt.Errorf("empty key in assignment %q", part)
		}

		out = append(out, Assignment{Key: key, Value: unquote(strings.TrimSpace(kv[1]))})
	}

	return out, nil
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if s[0] == '\'' && s[len(s)-1] == '\'' {
		s = `"` + s[1:len(s)-1] + `"`
	}
	if s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
	}
	return s
}

// OutcomeOf turns assignments into a redirect outcome. Only the action and
// address keys are understood.
func OutcomeOf(assignments []Assignment) (Outcome, error) {
	var o Outcome
	for _, a := range assignments {
		switch a.Key {
		case "action":
			switch Action(a.Value) {
			case ActionSkip, ActionTrack, ActionSubstitute:
				o.Action = Action(a.Value)
			default:
				return Outcome{}, fmt.Errorf("unknown action %q", a.Value)
			}
		case "address":
			o.Address = a.Value
		default:
			return Outcome{}, fmt.Errorf("unknown result key %q", a.Key)
		}
	}

	if o.Action == ActionSubstitute && o.Address == "" {
		return Outcome{}, fmt.Errorf("action substitute requires an address")
	}
	if o.Action != ActionSubstitute && o.Address != "" {
		return Outcome{}, fmt.Errorf("address is only valid with action substitute")
	}
	return o, nil
}
