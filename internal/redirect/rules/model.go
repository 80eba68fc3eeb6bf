package rules

import "github.com/awmpietro/golang-execution-tracer/internal/redirect/rules/eval"

type Action string

const (
	ActionNone       Action = ""
	ActionSkip       Action = "skip"
	ActionTrack      Action = "track"
	ActionSubstitute Action = "substitute"
)

// Graph is a compiled rule graph. Evaluation starts at Start and follows
// the first edge whose condition holds.
type Graph struct {
	Start string
	Nodes map[string]*Node
}

type Node struct {
	ID       string
	Outcome  Outcome
	Outgoing []Edge
}

type Edge struct {
	To       string
	Cond     string
	Compiled *eval.Compiled
}

type Outcome struct {
	Action  Action `json:"action,omitempty"`
	Address string `json:"address,omitempty"`
}

type Assignment struct {
	Key   string
	Value string
}
