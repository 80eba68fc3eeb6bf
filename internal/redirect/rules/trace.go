package rules

const (
	TerminatedLeaf          = "leaf"
	TerminatedNoEdgeMatched = "no_edge_matched"
	TerminatedError         = "error"
	TerminatedMaxSteps      = "max_steps"
)

type EvaluationTrace struct {
	StartNode   string      `json:"start_node"`
	VisitedPath []string    `json:"visited_path"`
	Steps       []TraceStep `json:"steps"`
	Outcome     Outcome     `json:"outcome"`
	Terminated  string      `json:"terminated"`
}

type TraceStep struct {
	NodeID     string      `json:"node_id"`
	ChosenNext string      `json:"chosen_next,omitempty"`
	Edges      []EdgeTrace `json:"edges,omitempty"`
}

type EdgeTrace struct {
	To      string `json:"to"`
	Cond    string `json:"cond"`
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}
