package rules

import (
	"os"
	"testing"
)

func TestCompiler_HostRules(t *testing.T) {
	dot, err := os.ReadFile("testdata/hosts.dot")
	if err != nil {
		t.Fatal(err)
	}

	g, err := NewCompiler().Compile(string(dot))
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(g.Nodes))
	}

	start := g.Nodes["start"]
	if len(start.Outgoing) != 4 {
		t.Fatalf("expected 4 edges from start, got %d", len(start.Outgoing))
	}
	if start.Outgoing[0].To != "payments" || start.Outgoing[3].To != "tracked" {
		t.Fatalf("edges must keep source order, got %#v", start.Outgoing)
	}

	internal := g.Nodes["internal"].Outcome
	if internal.Action != ActionSubstitute || internal.Address != "127.0.0.1" {
		t.Fatalf("unexpected outcome: %#v", internal)
	}
}

func TestCompiler_RejectsMissingStart(t *testing.T) {
	_, err := NewCompiler().Compile(`digraph { a -> b; }`)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCompiler_RejectsInvalidCond(t *testing.T) {
	_, err := NewCompiler().Compile(`digraph {
		start -> a [label="len(host) > 3"];
	}`)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCompiler_RejectsInvalidOutcome(t *testing.T) {
	cases := []string{
		`digraph { start; a [label="action=substitute"]; start -> a; }`,
		`digraph { start; a [label="action=teleport"]; start -> a; }`,
		`digraph { start; a [label="action=skip,address=1.2.3.4"]; start -> a; }`,
		`digraph { start; a [label="weight=3"]; start -> a; }`,
	}
	for _, dot := range cases {
		if _, err := NewCompiler().Compile(dot); err == nil {
			t.Fatalf("expected error for %s", dot)
		}
	}
}
