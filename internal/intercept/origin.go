package intercept

import (
	"context"

	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
)

type originKey struct{}

// WithOrigin marks calls made with ctx as coming from the given call site.
func WithOrigin(ctx context.Context, o catalog.Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom defaults to the subject's own code.
func OriginFrom(ctx context.Context) catalog.Origin {
	if ctx == nil {
		return catalog.OriginSubject
	}
	if o, ok := ctx.Value(originKey{}).(catalog.Origin); ok {
		return o
	}
	return catalog.OriginSubject
}
