// internal/app/service_test.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/awmpietro/golang-execution-tracer/internal/action"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

type fakeCompiler struct {
	calls int
	g     *rules.Graph
	err   error
}

func (f *fakeCompiler) Compile(dot string) (*rules.Graph, error) {
	f.calls++
	return f.g, f.err
}

type fakeEngine struct {
	calls int
	fn    func(g *rules.Graph, vars map[string]any) (rules.Outcome, error)
}

func (f *fakeEngine) Decide(g *rules.Graph, vars map[string]any) (rules.Outcome, error) {
	f.calls++
	return f.fn(g, vars)
}

type fakeCache struct {
	calls int
}

func (c *fakeCache) GetOrCompute(dot string, fn func() (*rules.Graph, error)) (*rules.Graph, error) {
	c.calls++
	return fn()
}

type staticPolicy struct {
	p *redirect.Policy
}

func (s staticPolicy) Policy() *redirect.Policy { return s.p }

func newTestService(opts ...Option) *Service {
	p := redirect.MustPolicy(redirect.Config{
		SkipHosts: []string{"metrics.local"},
		Overrides: map[string]string{"svc.internal": "127.0.0.1"},
	})
	eng := &fakeEngine{fn: func(*rules.Graph, map[string]any) (rules.Outcome, error) {
		return rules.Outcome{}, nil
	}}
	return NewService(tracer.NewRegistry(), staticPolicy{p}, &fakeCompiler{}, eng, &fakeCache{}, opts...)
}

func desc() *action.Descriptor {
	return &action.Descriptor{
		InterfaceID:   "orders",
		ActionName:    "place",
		RequestParams: []*action.Param{{Name: "sku", Type: "string"}},
	}
}

func TestService_Execute_RecordsIntoOwnExecution(t *testing.T) {
	s := newTestService()

	res, err := s.Execute(context.Background(), desc(), InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
		tr := tracer.FromContext(ctx)
		if tr == nil {
			t.Fatalf("expected a tracer bound to ctx")
		}
		tr.RecordDistance("B1", 5, 0)
		tr.RecordDistance("B1", 2, 0)
		tr.RecordDistance("B1", 7, 0)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	if res.ExecutionID == "" || res.Action != "orders:place" || res.Attempts != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
	d, ok := res.Trace.Distance("B1")
	if !ok || d.ToTrue != 2 {
		t.Fatalf("expected min distance 2, got %#v", d)
	}
	if res.Trace.ExecutionID != res.ExecutionID {
		t.Fatalf("trace belongs to another execution")
	}
}

func TestService_Execute_InvokerGetsIndependentCopy(t *testing.T) {
	s := newTestService()
	src := desc()

	_, err := s.Execute(context.Background(), src, InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
		d.RequestParams[0].Name = "mutated"
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if src.RequestParams[0].Name != "sku" {
		t.Fatalf("source descriptor was mutated")
	}
}

func TestService_Execute_InvokerSeesAuthSetup(t *testing.T) {
	s := newTestService()
	src := desc()
	if err := src.SetAuthSetup(&action.Descriptor{InterfaceID: "auth", ActionName: "login"}); err != nil {
		t.Fatal(err)
	}

	_, err := s.Execute(context.Background(), src, InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
		if d.AuthSetup == nil || d.AuthSetup.Name() != "auth:login" {
			t.Fatalf("expected auth setup to reach the invoker, got %#v", d.AuthSetup)
		}
		if d.AuthSetup == src.AuthSetup {
			t.Fatalf("auth setup shared with the source descriptor")
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
}

func TestService_Execute_RetriesWithCleanTrace(t *testing.T) {
	s := newTestService(WithRetries(2))
	var calls int

	res, err := s.Execute(context.Background(), desc(), InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
		calls++
		tracer.FromContext(ctx).RecordHostLookup(fmt.Sprintf("attempt-%d.test", calls), true)
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", res.Attempts)
	}
	if len(res.Trace.Hostnames) != 1 || res.Trace.Hostnames[0].Host != "attempt-3.test" {
		t.Fatalf("expected only the last attempt's records, got %#v", res.Trace.Hostnames)
	}
}

func TestService_Execute_FailureKeepsPartialTrace(t *testing.T) {
	s := newTestService(WithRetries(0))
	boom := errors.New("boom")

	res, err := s.Execute(context.Background(), desc(), InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
		tracer.FromContext(ctx).RecordExternalContact("tcp", "api.example.test", 443)
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if res == nil || res.Error != "boom" || len(res.Trace.ExternalServices) != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if s.registry.Active() != 0 {
		t.Fatalf("execution partition leaked")
	}
}

func TestService_Execute_RejectsMalformedDescriptor(t *testing.T) {
	s := newTestService()
	_, err := s.Execute(context.Background(), &action.Descriptor{ActionName: "x"}, InvokerFunc(func(context.Context, *action.Descriptor) error {
		t.Fatalf("invoker must not run")
		return nil
	}))
	if !errors.Is(err, action.ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestService_ExecuteBatch_PartitionsExecutions(t *testing.T) {
	s := newTestService(WithWorkers(4))

	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	seen := map[string]bool{}

	reqs := make([]ExecutionRequest, 16)
	for i := range reqs {
		d := desc()
		d.ActionName = fmt.Sprintf("a%d", i)
		reqs[i] = ExecutionRequest{
			Action: d,
			Invoker: InvokerFunc(func(ctx context.Context, d *action.Descriptor) error {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				tr := tracer.FromContext(ctx)
				mu.Lock()
				seen[tr.ExecutionID()] = true
				mu.Unlock()
				tr.RecordDistance(d.ActionName, 0, 1)
				return nil
			}),
		}
	}

	results, err := s.ExecuteBatch(context.Background(), reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != len(reqs) {
		t.Fatalf("expected %d distinct executions, got %d", len(reqs), len(seen))
	}
	if peak.Load() > 4 {
		t.Fatalf("worker limit exceeded: %d", peak.Load())
	}
	for i, r := range results {
		if len(r.Trace.Distances) != 1 {
			t.Fatalf("result %d mixes executions: %#v", i, r.Trace.Distances)
		}
		if _, ok := r.Trace.Distance(fmt.Sprintf("a%d", i)); !ok {
			t.Fatalf("result %d out of order", i)
		}
	}
}

func TestService_ExecuteBatch_ReturnsFirstError(t *testing.T) {
	s := newTestService(WithRetries(0))
	ok := InvokerFunc(func(context.Context, *action.Descriptor) error { return nil })
	bad := InvokerFunc(func(context.Context, *action.Descriptor) error { return errors.New("down") })

	results, err := s.ExecuteBatch(context.Background(), []ExecutionRequest{
		{Action: desc(), Invoker: ok},
		{Action: desc(), Invoker: bad},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if results[0] == nil || results[0].Error != "" || results[1].Error != "down" {
		t.Fatalf("unexpected results: %#v %#v", results[0], results[1])
	}
}

func TestService_Decide_ConfiguredPolicy(t *testing.T) {
	s := newTestService()

	res, err := s.Decide("svc.internal", DecideOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != redirect.Substitute || res.Decision.Address != "127.0.0.1" {
		t.Fatalf("unexpected decision: %#v", res.Decision)
	}
}

func TestService_Decide_AdHocRules(t *testing.T) {
	comp := &fakeCompiler{g: &rules.Graph{Start: "start", Nodes: map[string]*rules.Node{"start": {ID: "start"}}}}
	eng := &fakeEngine{fn: func(g *rules.Graph, vars map[string]any) (rules.Outcome, error) {
		if vars["domain"] == "corp" {
			return rules.Outcome{Action: rules.ActionSubstitute, Address: "10.0.0.9"}, nil
		}
		return rules.Outcome{}, nil
	}}
	c := &fakeCache{}
	p := redirect.MustPolicy(redirect.Config{Overrides: map[string]string{"svc.internal": "127.0.0.1"}})
	s := NewService(tracer.NewRegistry(), staticPolicy{p}, comp, eng, c)

	res, err := s.Decide("db.corp", DecideOptions{RulesDOT: "digraph{}"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != redirect.Substitute || res.Decision.Address != "10.0.0.9" {
		t.Fatalf("unexpected decision: %#v", res.Decision)
	}

	// overrides take precedence over ad-hoc rules
	res, err = s.Decide("svc.internal", DecideOptions{RulesDOT: "digraph{}"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Reason != redirect.ReasonOverride {
		t.Fatalf("expected override, got %#v", res.Decision)
	}
	if eng.calls != 1 || c.calls != 1 {
		t.Fatalf("rules consulted for an overridden host: engine=%d cache=%d", eng.calls, c.calls)
	}
}

func TestService_Decide_BubblesUpErrors(t *testing.T) {
	comp := &fakeCompiler{err: fmt.Errorf("compile fail")}
	s := NewService(tracer.NewRegistry(), staticPolicy{}, comp, &fakeEngine{}, &fakeCache{})

	_, err := s.Decide("api.example.test", DecideOptions{RulesDOT: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_Decide_DebugTrace(t *testing.T) {
	s := NewService(tracer.NewRegistry(), staticPolicy{}, rules.NewCompiler(), rules.NewEngine(), &fakeCache{})

	res, err := s.Decide("api.internal", DecideOptions{
		RulesDOT: `digraph { start; local [label="action=substitute,address=127.0.0.1"]; start -> local [label="domain == 'internal'"]; }`,
		Debug:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Trace == nil || res.Trace.Terminated != rules.TerminatedLeaf {
		t.Fatalf("expected leaf trace, got %#v", res.Trace)
	}
	if res.Decision.Address != "127.0.0.1" {
		t.Fatalf("unexpected decision: %#v", res.Decision)
	}
}

func TestService_Project(t *testing.T) {
	s := newTestService()
	d := desc()
	d.RequiredAuthCandidates = []int{0}

	minimal, err := s.Project(d, false)
	if err != nil {
		t.Fatal(err)
	}
	if minimal.RequiredAuthCandidates != nil {
		t.Fatalf("minimal projection must drop auth candidates")
	}

	complete, err := s.Project(d, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(complete.RequiredAuthCandidates) != 1 {
		t.Fatalf("complete projection must keep auth candidates")
	}

	if _, err := s.Project(&action.Descriptor{}, false); !errors.Is(err, action.ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}
