package app

import (
	"context"

	"github.com/awmpietro/golang-execution-tracer/internal/action"
)

// TraceService is what the transports need from the service.
type TraceService interface {
	Decide(host string, opts DecideOptions) (*DecideResult, error)
	Project(desc *action.Descriptor, complete bool) (*action.Descriptor, error)
}

// Invoker sends one action to the subject. Calls the subject makes while
// handling it must carry ctx so they are attributed to the execution.
type Invoker interface {
	Invoke(ctx context.Context, desc *action.Descriptor) error
}

type InvokerFunc func(ctx context.Context, desc *action.Descriptor) error

func (f InvokerFunc) Invoke(ctx context.Context, desc *action.Descriptor) error {
	return f(ctx, desc)
}
