package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/assoc/schema"
	"github.com/mickamy/assoc/scope"
)

// Query represents a pending SELECT against one entity's table.
// All builder methods return a new Query; the receiver is never
// modified. Conditions are abstract scope.Cond payloads; SQL is only
// rendered at execution time, through the dialect.
type Query struct {
	db     Querier
	entity *schema.Entity

	dbSchema string
	unscoped bool
	named    []string

	conds    []scope.Cond
	orderBys []orderBy
	limit    *int
	offset   *int
	fields   []string
}

type orderBy struct {
	attr string
	desc bool
}

// NewQuery starts a query against the given entity.
func NewQuery(db Querier, entity *schema.Entity) *Query {
	return &Query{db: db, entity: entity}
}

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Query) clone() *Query {
	q2 := *q
	q2.named = append([]string(nil), q.named...)
	q2.conds = append([]scope.Cond(nil), q.conds...)
	q2.orderBys = append([]orderBy(nil), q.orderBys...)
	q2.fields = append([]string(nil), q.fields...)
	return &q2
}

// --- Builder methods ---

// Where adds conditions, ANDed with any existing ones.
func (q *Query) Where(conds ...scope.Scope) *Query {
	q2 := q.clone()
	for _, c := range conds {
		c.Apply(q2)
	}
	return q2
}

// Scopes applies the given scope fragments to the query.
func (q *Query) Scopes(scopes ...scope.Scope) *Query {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// Named selects a named scope registered on the entity. Unknown names
// surface as an error at execution time.
func (q *Query) Named(name string) *Query {
	q2 := q.clone()
	q2.named = append(q2.named, name)
	return q2
}

// Unscoped disables the entity's default scope for this query.
func (q *Query) Unscoped() *Query {
	q2 := q.clone()
	q2.unscoped = true
	return q2
}

// InSchema switches the query to a named database schema.
func (q *Query) InSchema(name string) *Query {
	q2 := q.clone()
	q2.dbSchema = name
	return q2
}

// OrderBy orders by the named attribute.
func (q *Query) OrderBy(attr string, desc bool) *Query {
	q2 := q.clone()
	q2.orderBys = append(q2.orderBys, orderBy{attr, desc})
	return q2
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q2 := q.clone()
	q2.limit = &n
	return q2
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q2 := q.clone()
	q2.offset = &n
	return q2
}

// Fields restricts the selected attributes.
func (q *Query) Fields(fields ...string) *Query {
	q2 := q.clone()
	q2.fields = append([]string(nil), fields...)
	return q2
}

// --- scope.Applier implementation ---

func (q *Query) ApplyCond(c scope.Cond) {
	q.conds = append(q.conds, c)
}

func (q *Query) ApplyOrderBy(attr string, desc bool) {
	q.orderBys = append(q.orderBys, orderBy{attr, desc})
}

func (q *Query) ApplyLimit(n int)  { q.limit = &n }
func (q *Query) ApplyOffset(n int) { q.offset = &n }

func (q *Query) ApplyFields(fields []string) {
	q.fields = append([]string(nil), fields...)
}

var _ scope.Applier = (*Query)(nil)

// --- Terminal methods ---

// All executes the SELECT and returns all matching records.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	effective, err := q.withScopes()
	if err != nil {
		return nil, err
	}

	attrs, query, args, err := effective.buildSelect()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		rec, err := q.scanRecord(rows, attrs)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	return result, nil
}

// First executes the SELECT with LIMIT 1 and returns the first record.
// Returns ErrNotFound if no rows match.
func (q *Query) First(ctx context.Context) (*Record, error) {
	items, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// Count returns the number of rows matching the current conditions.
func (q *Query) Count(ctx context.Context) (int64, error) {
	effective, err := q.withScopes()
	if err != nil {
		return 0, err
	}
	query, args, err := effective.buildCount()
	if err != nil {
		return 0, err
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return 0, errors.New("orm: COUNT returned no rows")
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return count, rows.Err() //nolint:wrapcheck // pass through
}

// Exists reports whether at least one row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	count, err := q.Limit(1).Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// withScopes folds the default scope and selected named scopes into a
// new query. Caller-added conditions stay ANDed alongside.
func (q *Query) withScopes() (*Query, error) {
	q2 := q.clone()
	if !q.unscoped {
		for _, s := range q.entity.DefaultScopes() {
			s.Apply(q2)
		}
	}
	for _, name := range q.named {
		ss, ok := q.entity.NamedScope(name)
		if !ok {
			return nil, fmt.Errorf("orm: entity %q has no scope %q", q.entity.Name(), name)
		}
		for _, s := range ss {
			s.Apply(q2)
		}
	}
	return q2, nil
}

// selectedAttrs resolves the attribute list to select.
func (q *Query) selectedAttrs() ([]*schema.Attribute, error) {
	if q.fields == nil {
		return q.entity.Attributes(), nil
	}
	attrs := make([]*schema.Attribute, 0, len(q.fields))
	for _, name := range q.fields {
		a, ok := q.entity.Attr(name)
		if !ok {
			return nil, &schema.UnknownAttributeError{Entity: q.entity.Name(), Attribute: name}
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func (q *Query) buildSelect() ([]*schema.Attribute, string, []any, error) {
	d := q.db.dialect()
	attrs, err := q.selectedAttrs()
	if err != nil {
		return nil, "", nil, err
	}

	cols := make([]string, len(attrs))
	for i, a := range attrs {
		cols[i] = a.Column
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(quoteColumns(d, cols))
	b.WriteString(" FROM ")
	b.WriteString(qualifiedTable(d, q.dbSchema, q.entity.Table()))

	args, err := q.appendWhere(d, &b)
	if err != nil {
		return nil, "", nil, err
	}

	if len(q.orderBys) > 0 {
		b.WriteString(" ORDER BY ")
		for i, ob := range q.orderBys {
			if i > 0 {
				b.WriteString(", ")
			}
			col, err := q.entity.ColumnOf(ob.attr)
			if err != nil {
				return nil, "", nil, err
			}
			b.WriteString(d.QuoteIdent(col))
			if ob.desc {
				b.WriteString(" DESC")
			}
		}
	}

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *q.offset)
	}

	return attrs, rewritePlaceholders(d, b.String()), args, nil
}

func (q *Query) buildCount() (string, []any, error) {
	d := q.db.dialect()

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(qualifiedTable(d, q.dbSchema, q.entity.Table()))

	args, err := q.appendWhere(d, &b)
	if err != nil {
		return "", nil, err
	}

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *q.offset)
	}

	return rewritePlaceholders(d, b.String()), args, nil
}

func (q *Query) appendWhere(d Dialect, b *strings.Builder) ([]any, error) {
	if len(q.conds) == 0 {
		return nil, nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, c := range q.conds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		condArgs, err := q.renderCond(d, b, c)
		if err != nil {
			return nil, err
		}
		args = append(args, condArgs...)
	}
	return args, nil
}

// renderCond maps one abstract condition to SQL.
func (q *Query) renderCond(d Dialect, b *strings.Builder, c scope.Cond) ([]any, error) {
	col, err := q.entity.ColumnOf(c.Attr)
	if err != nil {
		return nil, err
	}
	qcol := d.QuoteIdent(col)

	switch c.Op {
	case scope.OpEq:
		if c.Value == nil {
			b.WriteString(qcol + " IS NULL")
			return nil, nil
		}
		b.WriteString(qcol + " = ?")
		return []any{c.Value}, nil
	case scope.OpNotEq:
		if c.Value == nil {
			b.WriteString(qcol + " IS NOT NULL")
			return nil, nil
		}
		b.WriteString(qcol + " <> ?")
		return []any{c.Value}, nil
	case scope.OpIsNull:
		b.WriteString(qcol + " IS NULL")
		return nil, nil
	case scope.OpIn:
		if len(c.Values) == 0 {
			b.WriteString("1 = 0")
			return nil, nil
		}
		b.WriteString(qcol + " IN (" + placeholderList(len(c.Values)) + ")")
		return append([]any(nil), c.Values...), nil
	default:
		return nil, fmt.Errorf("orm: unsupported condition operator %d", c.Op)
	}
}

// scanRecord reads one row into a Record holding raw attribute values.
func (q *Query) scanRecord(rows *sql.Rows, attrs []*schema.Attribute) (*Record, error) {
	dest := make([]any, len(attrs))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}

	values := make(map[string]any, len(attrs))
	for i, a := range attrs {
		values[a.Name] = convertValue(a.Type, *dest[i].(*any))
	}
	return Build(q.entity, values, false), nil
}

// convertValue normalizes driver values to the attribute's logical type.
func convertValue(t schema.Type, v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case schema.Int:
		if n, ok := v.(int64); ok {
			return int(n)
		}
	case schema.String, schema.Text, schema.UUID:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	case schema.Bool:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case schema.Float:
		if b, ok := v.([]byte); ok {
			var f float64
			if _, err := fmt.Sscanf(string(b), "%g", &f); err == nil {
				return f
			}
		}
	}
	return v
}
