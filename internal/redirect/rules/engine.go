package rules

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMaxSteps = errors.New("rule evaluation exceeded max steps")

const DefaultMaxSteps = 10_000

type Engine struct {
	maxSteps int
}

type EngineOption func(*Engine)

func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vars builds the evaluation variables for host.
func Vars(host string, numeric, loopback bool) map[string]any {
	domain := ""
	if i := strings.IndexByte(host, '.'); i >= 0 && !numeric {
		domain = host[i+1:]
	}
	return map[string]any{
		"host":     host,
		"domain":   domain,
		"numeric":  numeric,
		"loopback": loopback,
	}
}

// Decide walks g and returns the outcome of the last visited node that
// assigned one.
func (e *Engine) Decide(g *Graph, vars map[string]any) (Outcome, error) {
	tr, err := e.run(g, vars, false)
	return tr.Outcome, err
}

// DecideWithTrace is Decide plus a record of every visited node and edge.
// The trace is returned on error too.
func (e *Engine) DecideWithTrace(g *Graph, vars map[string]any) (*EvaluationTrace, error) {
	return e.run(g, vars, true)
}

func (e *Engine) run(g *Graph, vars map[string]any, detailed bool) (*EvaluationTrace, error) {
	tr := &EvaluationTrace{}
	if g == nil || g.Nodes == nil {
		tr.Terminated = TerminatedError
		return tr, fmt.Errorf("rule graph is nil")
	}

	current := g.Start
	if current == "" {
		current = DefaultStart
	}
	tr.StartNode = current

	for i := 0; i < e.maxSteps; i++ {
		node := g.Nodes[current]
		if node == nil {
			tr.Terminated = TerminatedError
			return tr, fmt.Errorf("unknown node %q", current)
		}

		tr.VisitedPath = append(tr.VisitedPath, current)
		if node.Outcome.Action != ActionNone {
			tr.Outcome = node.Outcome
		}

		step := TraceStep{NodeID: current}
		if len(node.Outgoing) == 0 {
			if detailed {
				tr.Steps = append(tr.Steps, step)
			}
			tr.Terminated = TerminatedLeaf
			return tr, nil
		}

		next := ""
		var errs []string
		for _, edge := range node.Outgoing {
			ok, err := edge.Compiled.Eval(vars)
			if detailed {
				et := EdgeTrace{To: edge.To, Cond: edge.Cond, Matched: ok && err == nil}
				if err != nil {
					et.Error = err.Error()
				}
				step.Edges = append(step.Edges, et)
			}
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s -> %s (%q): %v", current, edge.To, edge.Cond, err))
				continue
			}
			if ok {
				next = edge.To
				break
			}
		}

		step.ChosenNext = next
		if detailed {
			tr.Steps = append(tr.Steps, step)
		}

		if next == "" {
			if len(errs) > 0 {
				tr.Terminated = TerminatedError
				return tr, fmt.Errorf("no edge matched at node %q: eval details: %s", current, strings.Join(errs, "; "))
			}
			tr.Terminated = TerminatedNoEdgeMatched
			return tr, nil
		}
		current = next
	}

	tr.Terminated = TerminatedMaxSteps
	return tr, fmt.Errorf("%w (%d): possible cycle", ErrMaxSteps, e.maxSteps)
}
