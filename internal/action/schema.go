package action

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// Schema is the set of actions extracted from one subject together with
// the actions that can serve as their auth setup.
type Schema struct {
	Actions    []*Descriptor `json:"actions"`
	AuthSetups []*Descriptor `json:"authSetups,omitempty"`
}

func (s *Schema) Validate() error {
	for i, a := range s.AuthSetups {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("auth setup %d: %w", i, err)
		}
	}
	for i, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		for _, c := range a.RequiredAuthCandidates {
			if c < 0 || c >= len(s.AuthSetups) {
				return fmt.Errorf("action %s candidate %d: %w", a.Name(), c, ErrAuthCandidateOutOfRange)
			}
		}
	}

	g, err := s.AuthGraph()
	if err != nil {
		return err
	}
	return acyclic(g)
}

// AuthGraph returns the "requires" relation as a directed graph: an edge
// a -> b means a needs b to run first.
func (s *Schema) AuthGraph() (*gographviz.Graph, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("auth"); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}

	addNode := func(d *Descriptor, shape string) error {
		id := nodeID(d)
		if g.IsNode(id) {
			return nil
		}
		return g.AddNode("auth", id, map[string]string{"shape": shape})
	}
	addEdge := func(from, to *Descriptor) error {
		return g.AddEdge(nodeID(from), nodeID(to), true, nil)
	}

	for _, a := range s.AuthSetups {
		if err := addNode(a, "box"); err != nil {
			return nil, err
		}
	}
	for _, a := range s.Actions {
		if err := addNode(a, "ellipse"); err != nil {
			return nil, err
		}
	}
	for _, a := range append(append([]*Descriptor{}, s.AuthSetups...), s.Actions...) {
		for _, c := range a.RequiredAuthCandidates {
			if c < 0 || c >= len(s.AuthSetups) {
				continue
			}
			if err := addEdge(a, s.AuthSetups[c]); err != nil {
				return nil, err
			}
		}
		seen := map[*Descriptor]bool{a: true}
		for prev, next := a, a.AuthSetup; next != nil; prev, next = next, next.AuthSetup {
			if err := addNode(next, "box"); err != nil {
				return nil, err
			}
			if err := addEdge(prev, next); err != nil {
				return nil, err
			}
			if seen[next] {
				break
			}
			seen[next] = true
		}
	}
	return g, nil
}

// InvocationFor returns the minimal projection of Actions[action] with the
// auth setup candidate applied. A negative candidate means no auth setup.
func (s *Schema) InvocationFor(action, candidate int) (*Descriptor, error) {
	if action < 0 || action >= len(s.Actions) {
		return nil, fmt.Errorf("action index %d out of range", action)
	}
	a := s.Actions[action]
	if err := a.Validate(); err != nil {
		return nil, err
	}
	inv := a.Copy()
	if candidate < 0 {
		return inv, nil
	}
	if candidate >= len(s.AuthSetups) {
		return nil, fmt.Errorf("candidate %d: %w", candidate, ErrAuthCandidateOutOfRange)
	}
	if len(a.RequiredAuthCandidates) > 0 && !slices.Contains(a.RequiredAuthCandidates, candidate) {
		return nil, fmt.Errorf("candidate %d is not listed for %s: %w", candidate, a.Name(), ErrAuthCandidateOutOfRange)
	}
	if err := inv.SetAuthSetup(s.AuthSetups[candidate]); err != nil {
		return nil, err
	}
	return inv, nil
}

func acyclic(g *gographviz.Graph) error {
	const (
		onStack = iota + 1
		done
	)
	state := map[string]int{}

	var visit func(n string) error
	visit = func(n string) error {
		switch state[n] {
		case onStack:
			return fmt.Errorf("%w: %s", ErrAuthCycle, unquote(n))
		case done:
			return nil
		}
		state[n] = onStack
		for dst := range g.Edges.SrcToDsts[n] {
			if err := visit(dst); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}

	for _, n := range g.Nodes.Nodes {
		if err := visit(n.Name); err != nil {
			return err
		}
	}
	return nil
}

func nodeID(d *Descriptor) string {
	return strconv.Quote(d.Name())
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}
