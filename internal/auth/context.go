package auth

import (
	"context"

	"github.com/sells-group/truthstamp/internal/model"
)

type callersKey struct{}

// WithCallers returns a context recording that callers authorized the
// operations run under it.
func WithCallers(ctx context.Context, callers ...model.Address) context.Context {
	prev := Callers(ctx)
	all := make([]model.Address, 0, len(prev)+len(callers))
	all = append(all, prev...)
	all = append(all, callers...)
	return context.WithValue(ctx, callersKey{}, all)
}

// Callers returns the identities recorded on ctx.
func Callers(ctx context.Context) []model.Address {
	callers, _ := ctx.Value(callersKey{}).([]model.Address)
	return callers
}
