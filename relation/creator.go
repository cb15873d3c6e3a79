package relation

import (
	"context"
	"slices"

	"github.com/mickamy/assoc/orm"
)

// CreateOptions adjusts a Create call.
type CreateOptions struct {
	// Fields restricts the persisted attributes. The relationship
	// scope attributes and the foreign key are always included.
	Fields []string

	// Schema switches the write to a named database schema.
	Schema string
}

// Create builds and persists a brand-new target record linked to
// source: the relationship scope values and the foreign key are merged
// into values before delegating to the target entity's create.
// Validation and constraint errors from the underlying create pass
// through unchanged.
func (h *HasOne) Create(ctx context.Context, db orm.Querier, source *orm.Record, values map[string]any, opts *CreateOptions) (*orm.Record, error) {
	merged := make(map[string]any, len(values)+len(h.scope)+1)
	for k, v := range values {
		merged[k] = v
	}
	for k, v := range h.scope {
		merged[k] = v
	}
	merged[h.foreignKey] = source.Raw(h.sourceKey)

	var saveOpts orm.SaveOptions
	if opts != nil {
		saveOpts.Schema = opts.Schema
		if opts.Fields != nil {
			fields := slices.Clone(opts.Fields)
			for k := range h.scope {
				if !slices.Contains(fields, k) {
					fields = append(fields, k)
				}
			}
			if !slices.Contains(fields, h.foreignKey) {
				fields = append(fields, h.foreignKey)
			}
			saveOpts.Fields = fields
		}
	}

	rec := orm.Build(h.target, merged, true)
	if err := rec.Save(ctx, db, &saveOpts); err != nil {
		return nil, err
	}
	return rec, nil
}
