package relation

import (
	"context"
	"reflect"

	"github.com/mickamy/assoc/orm"
)

// Candidate is the value a relationship is reassigned to: a full
// record, a bare primary key value, or nothing.
type Candidate struct {
	record *orm.Record
	key    any
	link   bool
}

// Link wraps an existing record as the new related record.
func Link(rec *orm.Record) Candidate {
	return Candidate{record: rec, link: true}
}

// LinkKey wraps a bare primary key value; the writer materializes it as
// an existing target record keyed by that value.
func LinkKey(key any) Candidate {
	return Candidate{key: key, link: true}
}

// Unlink clears the relationship without attaching a replacement.
func Unlink() Candidate {
	return Candidate{}
}

// SetOptions adjusts a Set call.
type SetOptions struct {
	// Schema switches all reads and writes to a named database schema.
	Schema string
}

// Set reassigns or clears the relationship for one source record: the
// previously linked record, if any and different from candidate, is
// detached by persisting a NULL foreign key, strictly before the
// candidate is attached. Passing the already-linked record performs no
// writes. Returns the attached record, or nil on pure detach.
//
// The read-detach-attach sequence is not atomic; callers needing
// atomicity pass a transaction as db.
func (h *HasOne) Set(ctx context.Context, db orm.Querier, source *orm.Record, candidate Candidate, opts *SetOptions) (*orm.Record, error) {
	findOpts := FindOptions{Unscoped: true}
	var schemaName string
	if opts != nil {
		schemaName = opts.Schema
		findOpts.Schema = opts.Schema
	}

	// The current link is read with scope disabled so records invisible
	// under the default scope are still detached.
	prev, err := h.GetOne(ctx, db, source, &findOpts)
	if err != nil {
		return nil, err
	}

	same := prev != nil && candidate.link && h.sameRecord(prev, candidate)
	if same {
		return prev, nil
	}

	if prev != nil {
		prev.Set(h.foreignKey, nil)
		err := prev.Save(ctx, db, &orm.SaveOptions{
			Fields:    []string{h.foreignKey},
			AllowNull: []string{h.foreignKey},
			Internal:  true,
			Schema:    schemaName,
		})
		if err != nil {
			return nil, err
		}
	}

	if !candidate.link {
		return nil, nil
	}

	rec := candidate.record
	if rec == nil {
		pk := h.target.PrimaryKey()
		rec = orm.Build(h.target, map[string]any{pk: candidate.key}, false)
	}
	for k, v := range h.scope {
		rec.Set(k, v)
	}
	rec.Set(h.foreignKey, source.Raw(h.sourceKey))
	if err := rec.Save(ctx, db, &orm.SaveOptions{Schema: schemaName}); err != nil {
		return nil, err
	}
	return rec, nil
}

// sameRecord reports whether candidate already is the linked record,
// comparing every primary key attribute pairwise on raw values.
func (h *HasOne) sameRecord(prev *orm.Record, candidate Candidate) bool {
	pk := h.target.PrimaryKey()
	if candidate.record != nil {
		return rawEqual(prev.Raw(pk), candidate.record.Raw(pk))
	}
	return rawEqual(prev.Raw(pk), candidate.key)
}

// rawEqual compares physical values: no getter transforms, no type
// coercion beyond deep equality.
func rawEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}
