package intercept

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

var ErrExecutionsActive = errors.New("redirect policy cannot change while executions are active")

// Interceptor routes calls to cataloged routines to their replacements.
// Calls without a catalog entry, or whose call site the entry's filter
// excludes, run the real operation and record nothing.
type Interceptor struct {
	catalog  *catalog.Catalog
	policy   atomic.Pointer[redirect.Policy]
	registry *tracer.Registry
	net      Net
	logger   *zap.Logger
}

type Option func(*Interceptor)

func WithNet(n Net) Option {
	return func(i *Interceptor) {
		if n != nil {
			i.net = n
		}
	}
}

// WithRegistry lets Reconfigure refuse changes while any execution of r runs.
func WithRegistry(r *tracer.Registry) Option {
	return func(i *Interceptor) {
		i.registry = r
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(i *Interceptor) {
		if l != nil {
			i.logger = l
		}
	}
}

func New(cat *catalog.Catalog, policy *redirect.Policy, opts ...Option) *Interceptor {
	i := &Interceptor{
		catalog: cat,
		net:     NewSystemNet(),
		logger:  zap.NewNop(),
	}
	i.policy.Store(policy)
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interceptor) Policy() *redirect.Policy {
	return i.policy.Load()
}

// Reconfigure swaps the redirect policy between executions.
func (i *Interceptor) Reconfigure(p *redirect.Policy) error {
	if i.registry == nil {
		i.policy.Store(p)
		return nil
	}
	if !i.registry.WhenIdle(func() { i.policy.Store(p) }) {
		i.logger.Warn("redirect policy change rejected", zap.Int("active_executions", i.registry.Active()))
		return ErrExecutionsActive
	}
	return nil
}

// Resolver returns a resolver whose lookups go through the interceptor.
func (i *Interceptor) Resolver() HostResolver {
	return i
}

// Dialer returns a dial function suitable for http.Transport.DialContext.
func (i *Interceptor) Dialer() func(ctx context.Context, network, address string) (net.Conn, error) {
	return i.DialContext
}

// dispatch returns the replacement bound to key for the call site in ctx,
// or "" when the real operation should run untouched.
func (i *Interceptor) dispatch(ctx context.Context, key catalog.Key) catalog.Replacement {
	e, ok := i.catalog.Lookup(key)
	if !ok || !e.Filter.Allows(OriginFrom(ctx)) {
		return ""
	}
	return e.Replacement
}
