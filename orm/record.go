package orm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mickamy/assoc/schema"
)

// Record is a dynamic instance of an entity: a bag of attribute values
// tied to a schema.Entity. New records are persisted with INSERT,
// existing ones with UPDATE of their changed attributes.
type Record struct {
	entity  *schema.Entity
	values  map[string]any
	changed map[string]struct{}
	isNew   bool
}

// Build constructs a Record for the given entity. When isNewRecord is
// true, attribute defaults are applied for values not supplied; when
// false the record is treated as already persisted (e.g. wrapping a
// bare primary key value) and nothing is marked changed.
func Build(entity *schema.Entity, values map[string]any, isNewRecord bool) *Record {
	r := &Record{
		entity:  entity,
		values:  make(map[string]any, len(values)),
		changed: make(map[string]struct{}),
		isNew:   isNewRecord,
	}
	for k, v := range values {
		r.values[k] = v
	}
	if isNewRecord {
		for _, a := range entity.Attributes() {
			if _, ok := r.values[a.Name]; ok {
				continue
			}
			switch {
			case a.DefaultFunc != nil:
				r.values[a.Name] = a.DefaultFunc()
			case a.Default != nil:
				r.values[a.Name] = a.Default
			}
		}
	}
	return r
}

// Entity returns the schema definition this record is bound to.
func (r *Record) Entity() *schema.Entity { return r.entity }

// IsNew reports whether the record has not been persisted yet.
func (r *Record) IsNew() bool { return r.isNew }

// Get returns the attribute value with the entity-level getter
// transform applied, if one is declared.
func (r *Record) Get(name string) any {
	v := r.values[name]
	if a, ok := r.entity.Attr(name); ok && a.Get != nil {
		return a.Get(v)
	}
	return v
}

// Raw returns the attribute value as stored, bypassing any getter
// transform. Equality checks against physical storage must use Raw.
func (r *Record) Raw(name string) any {
	return r.values[name]
}

// Set assigns an attribute value and marks it changed.
func (r *Record) Set(name string, v any) {
	r.values[name] = v
	r.changed[name] = struct{}{}
}

// SetMany assigns multiple attribute values.
func (r *Record) SetMany(values map[string]any) {
	for k, v := range values {
		r.Set(k, v)
	}
}

// PrimaryKey returns the raw primary key value.
func (r *Record) PrimaryKey() any {
	return r.Raw(r.entity.PrimaryKey())
}

// Changed returns the attribute names modified since the last save, in
// entity declaration order.
func (r *Record) Changed() []string {
	var out []string
	for _, a := range r.entity.Attributes() {
		if _, ok := r.changed[a.Name]; ok {
			out = append(out, a.Name)
		}
	}
	return out
}

// SaveOptions controls a single Save call.
type SaveOptions struct {
	// Fields restricts the persisted attributes to the named subset.
	Fields []string

	// AllowNull skips not-null validation for the named attributes.
	AllowNull []string

	// Internal marks the write as association-internal: entity
	// BeforeUpdate hooks for direct field edits are not dispatched.
	Internal bool

	// Schema switches the write to a named database schema.
	Schema string
}

func (o *SaveOptions) allowsNull(attr string) bool {
	return o != nil && slices.Contains(o.AllowNull, attr)
}

func (o *SaveOptions) wantsField(attr string) bool {
	return o == nil || o.Fields == nil || slices.Contains(o.Fields, attr)
}

// Save persists the record: INSERT when new, UPDATE of changed
// attributes otherwise. Database errors pass through unchanged.
func (r *Record) Save(ctx context.Context, db Querier, opts *SaveOptions) error {
	if r.isNew {
		return r.insert(ctx, db, opts)
	}
	return r.update(ctx, db, opts)
}

func (r *Record) insert(ctx context.Context, db Querier, opts *SaveOptions) error {
	touchTimestamps(ctx, r, true)

	d := db.dialect()
	pk := r.entity.PrimaryKey()
	pkAttr, _ := r.entity.Attr(pk)
	autoPK := pkAttr.AutoIncrement

	var cols []string
	var vals []any
	persisted := make(map[string]any)
	for _, a := range r.entity.Attributes() {
		v, present := r.values[a.Name]
		if a.Name == pk && autoPK {
			continue
		}
		if !present || !opts.wantsField(a.Name) {
			continue
		}
		if v == nil && !a.Nullable && !opts.allowsNull(a.Name) {
			return &NotNullError{Entity: r.entity.Name(), Attribute: a.Name}
		}
		cols = append(cols, a.Column)
		vals = append(vals, v)
		persisted[a.Name] = v
	}

	if hook := r.entity.EntityHooks().BeforeCreate; hook != nil {
		if err := hook(ctx, persisted); err != nil {
			return err
		}
	}

	var schemaName string
	if opts != nil {
		schemaName = opts.Schema
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		qualifiedTable(d, schemaName, r.entity.Table()),
		quoteColumns(d, cols),
		placeholderList(len(cols)),
	)
	query = rewritePlaceholders(d, query)

	if autoPK && d.UseReturning() {
		pkCol, err := r.entity.ColumnOf(pk)
		if err != nil {
			return err
		}
		query += d.ReturningClause(pkCol)
		rows, err := db.QueryContext(ctx, query, vals...)
		if err != nil {
			return err //nolint:wrapcheck // pass through
		}
		defer func() { _ = rows.Close() }()
		if !rows.Next() {
			return errors.New("orm: INSERT RETURNING returned no rows")
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		r.setGeneratedPK(id)
		if err := rows.Err(); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		r.finishSave()
		return nil
	}

	result, err := db.ExecContext(ctx, query, vals...)
	if err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if autoPK {
		id, err := result.LastInsertId()
		if err != nil {
			return err //nolint:wrapcheck // pass through
		}
		r.setGeneratedPK(id)
	}
	r.finishSave()
	return nil
}

func (r *Record) update(ctx context.Context, db Querier, opts *SaveOptions) error {
	pk := r.entity.PrimaryKey()

	var attrs []string
	for _, name := range r.Changed() {
		if name == pk || !opts.wantsField(name) {
			continue
		}
		attrs = append(attrs, name)
	}
	if len(attrs) == 0 {
		return nil
	}

	touchTimestamps(ctx, r, false)
	if _, ok := r.entity.Attr(updatedAtAttr); ok && opts.wantsField(updatedAtAttr) {
		if !slices.Contains(attrs, updatedAtAttr) {
			attrs = append(attrs, updatedAtAttr)
		}
	}

	persisted := make(map[string]any, len(attrs))
	var sets []string
	var vals []any
	d := db.dialect()
	for _, name := range attrs {
		a, ok := r.entity.Attr(name)
		if !ok {
			return &schema.UnknownAttributeError{Entity: r.entity.Name(), Attribute: name}
		}
		v := r.values[name]
		if v == nil && !a.Nullable && !opts.allowsNull(name) {
			return &NotNullError{Entity: r.entity.Name(), Attribute: name}
		}
		sets = append(sets, d.QuoteIdent(a.Column)+" = ?")
		vals = append(vals, v)
		persisted[name] = v
	}

	internal := opts != nil && opts.Internal
	if hook := r.entity.EntityHooks().BeforeUpdate; hook != nil && !internal {
		if err := hook(ctx, persisted); err != nil {
			return err
		}
	}

	pkCol, err := r.entity.ColumnOf(pk)
	if err != nil {
		return err
	}
	pkVal := r.PrimaryKey()
	if pkVal == nil {
		return errors.New("orm: primary key value is required for update")
	}
	vals = append(vals, pkVal)

	var schemaName string
	if opts != nil {
		schemaName = opts.Schema
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		qualifiedTable(d, schemaName, r.entity.Table()),
		strings.Join(sets, ", "),
		d.QuoteIdent(pkCol),
	)
	query = rewritePlaceholders(d, query)

	if _, err := db.ExecContext(ctx, query, vals...); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	for _, name := range attrs {
		delete(r.changed, name)
	}
	return nil
}

func (r *Record) setGeneratedPK(id int64) {
	pk := r.entity.PrimaryKey()
	if a, ok := r.entity.Attr(pk); ok && a.Type == schema.Int64 {
		r.values[pk] = id
		return
	}
	r.values[pk] = int(id)
}

func (r *Record) finishSave() {
	r.isNew = false
	r.changed = make(map[string]struct{})
}
