package orm

import (
	"context"
	"time"
)

const (
	createdAtAttr = "createdAt"
	updatedAtAttr = "updatedAt"
)

// Clock provides the current time. Implementations can return fixed
// times for deterministic testing.
type Clock interface {
	Now() time.Time
}

type clockKey struct{}

// WithClock returns a child context carrying the given Clock. Record
// saves use it instead of time.Now() when stamping createdAt/updatedAt.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

func now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

// touchTimestamps stamps createdAt (on create) and updatedAt when the
// entity declares those attributes and the caller did not set them.
func touchTimestamps(ctx context.Context, r *Record, creating bool) {
	t := now(ctx)
	if creating {
		if _, ok := r.entity.Attr(createdAtAttr); ok {
			if _, set := r.values[createdAtAttr]; !set {
				r.values[createdAtAttr] = t
			}
		}
	}
	if _, ok := r.entity.Attr(updatedAtAttr); ok {
		if _, changed := r.changed[updatedAtAttr]; !changed {
			if _, set := r.values[updatedAtAttr]; !set || !creating {
				r.values[updatedAtAttr] = t
			}
		}
	}
}
