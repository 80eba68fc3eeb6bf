package tracedto

import (
	"github.com/awmpietro/golang-execution-tracer/internal/action"
	"github.com/awmpietro/golang-execution-tracer/internal/app"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
)

type DecideRequest struct {
	Host     string `json:"host"`
	RulesDOT string `json:"rules_dot,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

func (r DecideRequest) Options() app.DecideOptions {
	return app.DecideOptions{RulesDOT: r.RulesDOT, Debug: r.Debug}
}

type DecideResponse struct {
	Host     string            `json:"host"`
	Decision redirect.Decision `json:"decision"`
	Trace    *app.DecideTrace  `json:"trace,omitempty"`
}

func NewDecideResponse(res *app.DecideResult) DecideResponse {
	return DecideResponse{Host: res.Host, Decision: res.Decision, Trace: res.Trace}
}

type ProjectRequest struct {
	Action   *action.Descriptor `json:"action"`
	Complete bool               `json:"complete,omitempty"`
}

type ProjectResponse struct {
	Action   *action.Descriptor `json:"action"`
	Complete bool               `json:"complete"`
}
