package tracer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithTracer binds t to ctx so intercepted calls made with ctx record into it.
func WithTracer(ctx context.Context, t *Tracer) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tracer of the execution ctx belongs to, or nil.
func FromContext(ctx context.Context) *Tracer {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(ctxKey{}).(*Tracer)
	return t
}

// Registry hands out one tracer per running execution, keyed by execution id.
type Registry struct {
	observer Observer
	logger   *zap.Logger

	mu     sync.RWMutex
	active map[string]*Execution
}

type RegistryOption func(*Registry)

func WithRegistryObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: zap.NewNop(),
		active: map[string]*Execution{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Execution struct {
	ID      string
	Tracer  *Tracer
	Started time.Time

	registry *Registry
	once     sync.Once
	final    Snapshot
}

// Begin opens a new execution partition and returns ctx bound to its tracer.
// The caller must call End on every path; Run does that for you.
func (r *Registry) Begin(ctx context.Context) (context.Context, *Execution) {
	id := uuid.NewString()
	var opts []Option
	if r.observer != nil {
		opts = append(opts, WithObserver(r.observer))
	}
	ex := &Execution{
		ID:       id,
		Tracer:   New(id, opts...),
		Started:  time.Now(),
		registry: r,
	}

	r.mu.Lock()
	r.active[id] = ex
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveRecord(Event{ExecutionID: id, Kind: EventExecutionBegin})
	}
	r.logger.Debug("execution started", zap.String("execution_id", id))
	return WithTracer(ctx, ex.Tracer), ex
}

// End releases the partition and returns the final snapshot. Calling End more
// than once returns the same snapshot.
func (e *Execution) End() Snapshot {
	e.once.Do(func() {
		e.final = e.Tracer.Snapshot()
		r := e.registry
		r.mu.Lock()
		delete(r.active, e.ID)
		r.mu.Unlock()

		if r.observer != nil {
			r.observer.ObserveRecord(Event{ExecutionID: e.ID, Kind: EventExecutionEnd})
		}
		r.logger.Debug("execution finished",
			zap.String("execution_id", e.ID),
			zap.Duration("elapsed", time.Since(e.Started)),
			zap.Int("branches", len(e.final.Distances)),
			zap.Int("hostnames", len(e.final.Hostnames)),
			zap.Int("external_services", len(e.final.ExternalServices)),
		)
	})
	return e.final
}

// Run executes fn inside a fresh partition and always releases it, even when
// fn fails or panics. The snapshot holds whatever was recorded before fn
// returned.
func (r *Registry) Run(ctx context.Context, fn func(ctx context.Context, ex *Execution) error) (snap Snapshot, err error) {
	execCtx, ex := r.Begin(ctx)
	defer func() {
		snap = ex.End()
	}()
	err = fn(execCtx, ex)
	return snap, err
}

func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// WhenIdle runs fn only if no execution is active, and keeps new executions
// from starting until fn returns. It reports whether fn ran.
func (r *Registry) WhenIdle(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.active) > 0 {
		return false
	}
	fn()
	return true
}

func (r *Registry) Lookup(id string) (*Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.active[id]
	return ex, ok
}
