package intercept

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

// EqualFold reports strings.EqualFold(a, b) and records how close the
// branch came to either outcome.
func (i *Interceptor) EqualFold(ctx context.Context, branch, a, b string) bool {
	res := strings.EqualFold(a, b)
	if i.dispatch(ctx, catalog.KeyEqualFold) == catalog.StringEquals {
		toTrue, toFalse := foldDistance(res, a, b)
		tracer.FromContext(ctx).RecordDistance(branch, toTrue, toFalse)
	}
	return res
}

// Contains reports slices.Contains(items, target) and records the distance
// to the closest element.
func (i *Interceptor) Contains(ctx context.Context, branch string, items []string, target string) bool {
	res := slices.Contains(items, target)
	if i.dispatch(ctx, catalog.KeyContains) == catalog.CollectionContains {
		toTrue, toFalse := tracer.ContainsDistance(items, target)
		tracer.FromContext(ctx).RecordDistance(branch, toTrue, toFalse)
	}
	return res
}

// foldDistance keeps the recorded polarity consistent with the branch
// actually taken. Full case folding can equate strings EqualFold tells
// apart (ß and ss); those fall back to the raw distance.
func foldDistance(res bool, a, b string) (toTrue, toFalse float64) {
	if res {
		return 0, 1
	}
	fa, fb := cases.Fold().String(a), cases.Fold().String(b)
	if fa == fb {
		return tracer.EqualityDistance(a, b)
	}
	return tracer.EqualityDistance(fa, fb)
}
