package fanout

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// filter wraps a compiled CEL program evaluated per event. When disabled,
// Match always returns true.
type filter struct {
	prog    cel.Program
	enabled bool
}

func newFilter(expr string) (filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return filter{enabled: false}, nil
	}
	// "type" is reserved by CEL itself, so the event kind binds as
	// event_type.
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("priority", cel.StringType),
		cel.Variable("customer", cel.StringType),
		cel.Variable("agent_id", cel.StringType),
		cel.Variable("wait_seconds", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return filter{}, err
	}
	return filter{prog: prog, enabled: true}, nil
}

// Match evaluates the compiled expression against an event. Evaluation
// errors count as no match.
func (f filter) Match(ev Event) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"event_type":   string(ev.Type),
		"id":           ev.Item.ID,
		"status":       string(ev.Item.Status),
		"priority":     string(ev.Item.Priority),
		"customer":     ev.Item.CustomerName,
		"agent_id":     ev.Item.AssignedAgentID,
		"wait_seconds": ev.Item.WaitSeconds,
		"now_ms":       time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
