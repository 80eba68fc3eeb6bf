// internal/app/service.go
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/awmpietro/golang-execution-tracer/internal/action"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

type Compiler interface {
	Compile(dot string) (*rules.Graph, error)
}

type Engine interface {
	Decide(g *rules.Graph, vars map[string]any) (rules.Outcome, error)
}

type TraceEngine interface {
	DecideWithTrace(g *rules.Graph, vars map[string]any) (*rules.EvaluationTrace, error)
}

type Cache interface {
	GetOrCompute(dot string, fn func() (*rules.Graph, error)) (*rules.Graph, error)
}

// PolicySource yields the redirect policy currently in force.
type PolicySource interface {
	Policy() *redirect.Policy
}

type DecideTrace = rules.EvaluationTrace

type DecideOptions struct {
	// RulesDOT, when set, replaces the configured rule graph for this call.
	RulesDOT string
	Debug    bool
}

type DecideResult struct {
	Host     string            `json:"host"`
	Decision redirect.Decision `json:"decision"`
	Trace    *DecideTrace      `json:"trace,omitempty"`
}

type ExecutionRequest struct {
	Action  *action.Descriptor
	Invoker Invoker
}

type ExecutionResult struct {
	ExecutionID    string          `json:"executionId"`
	Action         string          `json:"action"`
	Trace          tracer.Snapshot `json:"trace"`
	DurationMillis float64         `json:"durationMillis"`
	Attempts       int             `json:"attempts"`
	Error          string          `json:"error,omitempty"`
}

type Service struct {
	registry *tracer.Registry
	policies PolicySource
	compiler Compiler
	engine   Engine
	cache    Cache
	logger   *zap.Logger
	workers  int
	retries  int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRetries sets how many times a failed invocation is re-run, with a
// clean trace, before the failure is reported.
func WithRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

func NewService(registry *tracer.Registry, policies PolicySource, compiler Compiler, engine Engine, cache Cache, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		policies: policies,
		compiler: compiler,
		engine:   engine,
		cache:    cache,
		logger:   zap.NewNop(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute invokes desc inside a fresh execution and returns the feedback
// recorded for it. The result is returned on failure too, carrying what was
// recorded by the last attempt.
func (s *Service) Execute(ctx context.Context, desc *action.Descriptor, inv Invoker) (*ExecutionResult, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoker is required")
	}

	res := &ExecutionResult{Action: desc.Name()}
	start := time.Now()

	snap, err := s.registry.Run(ctx, func(ctx context.Context, ex *tracer.Execution) error {
		res.ExecutionID = ex.ID
		var err error
		for attempt := 0; attempt <= s.retries; attempt++ {
			if attempt > 0 {
				ex.Tracer.Reset()
				s.logger.Info("retrying execution",
					zap.String("execution_id", ex.ID),
					zap.String("action", res.Action),
					zap.Int("attempt", attempt+1),
					zap.Error(err),
				)
			}
			res.Attempts++
			if err = inv.Invoke(ctx, desc.Invocation()); err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return err
			}
		}
		return err
	})

	res.Trace = snap
	res.DurationMillis = float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		res.Error = err.Error()
	}

	s.logger.Info("execution completed",
		zap.String("execution_id", res.ExecutionID),
		zap.String("action", res.Action),
		zap.Float64("duration_ms", res.DurationMillis),
		zap.Int("attempts", res.Attempts),
		zap.Int("branches", len(snap.Distances)),
		zap.Int("hostnames", len(snap.Hostnames)),
		zap.Int("external_services", len(snap.ExternalServices)),
		zap.Bool("ok", err == nil),
	)
	return res, err
}

// ExecuteBatch runs every request in its own execution, at most workers at a
// time. Results keep the order of reqs; the first failure is returned after
// all requests finished.
func (s *Service) ExecuteBatch(ctx context.Context, reqs []ExecutionRequest) ([]*ExecutionResult, error) {
	out := make([]*ExecutionResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.Execute(ctx, req.Action, req.Invoker)
			out[i] = res
			if err != nil {
				name := "<invalid>"
				if req.Action != nil {
					name = req.Action.Name()
				}
				return fmt.Errorf("execute %s: %w", name, err)
			}
			return nil
		})
	}
	return out, g.Wait()
}

// Decide returns the redirect decision for host. An ad-hoc rule graph, when
// given, is compiled once (cached) and consulted after the configured skip
// list and overrides.
func (s *Service) Decide(host string, opts DecideOptions) (*DecideResult, error) {
	policy := s.policies.Policy()
	res := &DecideResult{Host: redirect.NormalizeHost(host), Decision: policy.Decide(host)}

	if opts.RulesDOT == "" || !overridable(res.Decision) {
		return res, nil
	}

	g, err := s.cache.GetOrCompute(opts.RulesDOT, func() (*rules.Graph, error) {
		return s.compiler.Compile(opts.RulesDOT)
	})
	if err != nil {
		return nil, err
	}

	vars := rules.Vars(res.Host, false, false)
	if te, ok := s.engine.(TraceEngine); ok && opts.Debug {
		trace, err := te.DecideWithTrace(g, vars)
		if err != nil {
			res.Trace = trace
			return res, err
		}
		res.Decision = redirect.FromOutcome(trace.Outcome)
		res.Trace = trace
		return res, nil
	}

	out, err := s.engine.Decide(g, vars)
	if err != nil {
		return nil, err
	}
	res.Decision = redirect.FromOutcome(out)
	return res, nil
}

// Project returns the minimal or complete projection of desc.
func (s *Service) Project(desc *action.Descriptor, complete bool) (*action.Descriptor, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if complete {
		return desc.CopyComplete(), nil
	}
	return desc.Copy(), nil
}

func overridable(d redirect.Decision) bool {
	switch d.Reason {
	case redirect.ReasonRule, redirect.ReasonRuleError, redirect.ReasonDefault:
		return true
	}
	return false
}
