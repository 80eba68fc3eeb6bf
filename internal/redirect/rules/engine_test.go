// internal/redirect/rules/engine_test.go
package rules

import (
	"errors"
	"os"
	"testing"

	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules/eval"
)

func mustCompile(t *testing.T, cond string) *eval.Compiled {
	t.Helper()
	c, err := eval.Compile(cond)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func hostGraph(t *testing.T) *Graph {
	t.Helper()
	dot, err := os.ReadFile("testdata/hosts.dot")
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewCompiler().Compile(string(dot))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestEngine_Decide_FirstMatchingEdgeWins(t *testing.T) {
	g := hostGraph(t)
	e := NewEngine()

	cases := map[string]Outcome{
		"payments.internal":   {Action: ActionSubstitute, Address: "10.0.0.7"},
		"svc.internal":        {Action: ActionSubstitute, Address: "127.0.0.1"},
		"api.cluster.local":   {Action: ActionSkip},
		"registry.example.io": {Action: ActionTrack},
	}
	for host, want := range cases {
		got, err := e.Decide(g, Vars(host, false, false))
		if err != nil {
			t.Fatalf("%s: %v", host, err)
		}
		if got != want {
			t.Fatalf("%s: expected %#v, got %#v", host, want, got)
		}
	}
}

func TestEngine_Decide_NoEdgeMatchedKeepsLastOutcome(t *testing.T) {
	g := &Graph{
		Start: "start",
		Nodes: map[string]*Node{
			"start": {
				ID:       "start",
				Outcome:  Outcome{Action: ActionTrack},
				Outgoing: []Edge{{To: "a", Cond: "numeric", Compiled: mustCompile(t, "numeric")}},
			},
			"a": {ID: "a", Outcome: Outcome{Action: ActionSkip}},
		},
	}

	trace, err := NewEngine().DecideWithTrace(g, Vars("svc.test", false, false))
	if err != nil {
		t.Fatal(err)
	}
	if trace.Terminated != TerminatedNoEdgeMatched {
		t.Fatalf("unexpected termination: %q", trace.Terminated)
	}
	if trace.Outcome.Action != ActionTrack {
		t.Fatalf("expected start outcome to stand, got %#v", trace.Outcome)
	}
}

func TestEngine_DecideWithTrace_RecordsPath(t *testing.T) {
	g := hostGraph(t)

	trace, err := NewEngine().DecideWithTrace(g, Vars("svc.internal", false, false))
	if err != nil {
		t.Fatal(err)
	}
	if trace.Terminated != TerminatedLeaf {
		t.Fatalf("expected leaf, got %q", trace.Terminated)
	}
	if len(trace.VisitedPath) != 2 || trace.VisitedPath[1] != "internal" {
		t.Fatalf("unexpected path: %#v", trace.VisitedPath)
	}
	if len(trace.Steps) != 2 || trace.Steps[0].ChosenNext != "internal" {
		t.Fatalf("unexpected steps: %#v", trace.Steps)
	}
	if len(trace.Steps[0].Edges) != 2 || trace.Steps[0].Edges[0].Matched || !trace.Steps[0].Edges[1].Matched {
		t.Fatalf("unexpected edge trace: %#v", trace.Steps[0].Edges)
	}
}

func TestEngine_Decide_CycleHitsMaxSteps(t *testing.T) {
	always := mustCompile(t, "")
	g := &Graph{
		Start: "start",
		Nodes: map[string]*Node{
			"start": {ID: "start", Outgoing: []Edge{{To: "loop", Compiled: always}}},
			"loop":  {ID: "loop", Outgoing: []Edge{{To: "start", Compiled: always}}},
		},
	}

	trace, err := NewEngine(WithMaxSteps(10)).DecideWithTrace(g, Vars("a.test", false, false))
	if !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
	if trace.Terminated != TerminatedMaxSteps || len(trace.VisitedPath) != 10 {
		t.Fatalf("unexpected trace: %#v", trace)
	}
}

func TestEngine_Decide_EvalErrorBubbles(t *testing.T) {
	g := &Graph{
		Start: "start",
		Nodes: map[string]*Node{
			"start": {ID: "start", Outgoing: []Edge{{To: "a", Cond: "host startsWith 'x'", Compiled: mustCompile(t, "host startsWith 'x'")}}},
			"a":     {ID: "a"},
		},
	}

	// host has the wrong type at run time
	_, err := NewEngine().Decide(g, map[string]any{"host": 42})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEngine_Decide_UnknownNode(t *testing.T) {
	g := &Graph{Start: "nowhere", Nodes: map[string]*Node{}}
	if _, err := NewEngine().Decide(g, nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewEngine().Decide(nil, nil); err == nil {
		t.Fatalf("expected error for nil graph")
	}
}

func TestVars_Domain(t *testing.T) {
	if d := Vars("svc.internal", false, false)["domain"]; d != "internal" {
		t.Fatalf("unexpected domain %v", d)
	}
	if d := Vars("10.0.0.1", true, false)["domain"]; d != "" {
		t.Fatalf("numeric hosts have no domain, got %v", d)
	}
}
