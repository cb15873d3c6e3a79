package relation

import (
	"context"
	"errors"

	"github.com/mickamy/assoc/orm"
	"github.com/mickamy/assoc/scope"
)

// FindOptions adjusts how the related record is looked up.
type FindOptions struct {
	// Scope selects a named scope on the target entity.
	Scope string

	// Unscoped disables the target entity's default scope.
	Unscoped bool

	// Schema switches the lookup to a named database schema.
	Schema string

	// Where is an extra filter intersected with the relationship's own
	// filter.
	Where scope.Scopes
}

// GetOne returns the record linked to source, or nil when nothing is
// linked.
func (h *HasOne) GetOne(ctx context.Context, db orm.Querier, source *orm.Record, opts *FindOptions) (*orm.Record, error) {
	q := h.targetQuery(db, opts).
		Where(scope.Eq(h.foreignKey, source.Raw(h.sourceKey)))

	rec, err := q.First(ctx)
	if errors.Is(err, orm.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get resolves the relationship for many source records with a single
// batched query. The result maps each source record's raw source-key
// value to its linked record, or nil when nothing is linked; it holds
// one entry per distinct source-key value.
func (h *HasOne) Get(ctx context.Context, db orm.Querier, sources []*orm.Record, opts *FindOptions) (map[any]*orm.Record, error) {
	result := make(map[any]*orm.Record, len(sources))
	if len(sources) == 0 {
		return result, nil
	}

	keys := make([]any, len(sources))
	for i, s := range sources {
		keys[i] = s.Raw(h.sourceKey)
	}

	recs, err := h.targetQuery(db, opts).
		Where(scope.In(h.foreignKey, keys)).
		All(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[any]*orm.Record, len(recs))
	for _, rec := range recs {
		byKey[rec.Raw(h.foreignKey)] = rec
	}
	for _, key := range keys {
		result[key] = byKey[key]
	}
	return result, nil
}

// targetQuery builds the effective target query surface: scope and
// schema overrides first, then the relationship scope and any extra
// caller filter, ANDed together.
func (h *HasOne) targetQuery(db orm.Querier, opts *FindOptions) *orm.Query {
	q := orm.NewQuery(db, h.target)
	if opts != nil {
		if opts.Unscoped {
			q = q.Unscoped()
		}
		if opts.Scope != "" {
			q = q.Named(opts.Scope)
		}
		if opts.Schema != "" {
			q = q.InSchema(opts.Schema)
		}
	}
	if len(h.scope) > 0 {
		q = q.Scopes(scope.EqAll(h.scope)...)
	}
	if opts != nil && len(opts.Where) > 0 {
		q = q.Scopes(opts.Where...)
	}
	return q
}
