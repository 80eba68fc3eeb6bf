// internal/redirect/rules/compiler.go
package rules

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules/eval"
)

const DefaultStart = "start"

type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

// Compile parses a DOT rule graph. A node's label holds the outcome it
// assigns and an edge's label holds the condition evaluated against the host
// variables (gographviz rejects attributes Graphviz does not define).
func (c *Compiler) Compile(dot string) (*Graph, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}

	graph := &Graph{
		Start: DefaultStart,
		Nodes: map[string]*Node{},
	}

	for _, n := range g.Nodes.Nodes {
		id := strings.Trim(n.Name, `"`)

		assignments, err := ParseResult(getAttr(n.Attrs, "label"))
		if err != nil {
			return nil, fmt.Errorf("invalid result in node %q: %w", id, err)
		}
		outcome, err := OutcomeOf(assignments)
		if err != nil {
			return nil, fmt.Errorf("invalid result in node %q: %w", id, err)
		}

		graph.Nodes[id] = &Node{ID: id, Outcome: outcome}
	}

	if _, ok := graph.Nodes[graph.Start]; !ok {
		return nil, fmt.Errorf("missing %q node", graph.Start)
	}

	edges, err := edgesInSourceOrder(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to extract edge order from DOT: %w", err)
	}

	for _, e := range edges {
		from, ok := graph.Nodes[e.From]
		if !ok {
			return nil, fmt.Errorf("edge references unknown source node %q", e.From)
		}
		if _, ok := graph.Nodes[e.To]; !ok {
			return nil, fmt.Errorf("edge references unknown destination node %q", e.To)
		}

		compiled, err := eval.Compile(e.Cond)
		if err != nil {
			return nil, fmt.Errorf("invalid cond on edge %s->%s: %w", e.From, e.To, err)
		}

		from.Outgoing = append(from.Outgoing, Edge{
			To:       e.To,
			Cond:     compiled.Source,
			Compiled: compiled,
		})
	}

	return graph, nil
}

// getAttr reads a Graphviz attribute, stripping the surrounding quotes.
func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}

	val = strings.TrimSpace(val)
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = strings.ReplaceAll(val[1:len(val)-1], `\"`, `"`)
	}
	return val
}
