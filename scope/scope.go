package scope

import "sort"

// Op identifies a condition operator.
type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpIn
	OpIsNull
)

// Cond is an abstract filter condition on a named attribute. Conditions
// carry no SQL; the query layer maps attributes to columns and renders
// placeholders per dialect.
type Cond struct {
	Attr   string
	Op     Op
	Value  any   // OpEq / OpNotEq
	Values []any // OpIn
}

// Applier is implemented by query builders to receive scope fragments.
// This interface lives in the scope package so that the query layer can
// import scope without creating circular dependencies.
type Applier interface {
	ApplyCond(c Cond)
	ApplyOrderBy(attr string, desc bool)
	ApplyLimit(n int)
	ApplyOffset(n int)
	ApplyFields(fields []string)
}

type scopeKind int

const (
	kindCond scopeKind = iota
	kindOrderBy
	kindLimit
	kindOffset
	kindFields
)

// Scope represents a single query fragment. Scopes are immutable and
// safe to reuse across queries.
type Scope struct {
	kind   scopeKind
	cond   Cond
	attr   string
	desc   bool
	n      int
	fields []string
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindCond:
		a.ApplyCond(s.cond)
	case kindOrderBy:
		a.ApplyOrderBy(s.attr, s.desc)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	case kindFields:
		a.ApplyFields(s.fields)
	}
}

// Eq returns a Scope matching attr = value. A nil value matches NULL.
//
//	scope.Eq("kind", "primary")
func Eq(attr string, value any) Scope {
	return Scope{kind: kindCond, cond: Cond{Attr: attr, Op: OpEq, Value: value}}
}

// NotEq returns a Scope matching attr <> value.
func NotEq(attr string, value any) Scope {
	return Scope{kind: kindCond, cond: Cond{Attr: attr, Op: OpNotEq, Value: value}}
}

// IsNull returns a Scope matching attr IS NULL.
func IsNull(attr string) Scope {
	return Scope{kind: kindCond, cond: Cond{Attr: attr, Op: OpIsNull}}
}

// In returns a Scope matching attr IN (values...). An empty value set
// matches nothing.
//
//	scope.In("id", []any{1, 2, 3})
func In(attr string, values []any) Scope {
	return Scope{kind: kindCond, cond: Cond{Attr: attr, Op: OpIn, Values: values}}
}

// EqAll returns one Eq Scope per entry of values, in attribute order so
// the rendered query is deterministic.
func EqAll(values map[string]any) Scopes {
	if len(values) == 0 {
		return nil
	}
	attrs := make([]string, 0, len(values))
	for attr := range values {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	ss := make(Scopes, 0, len(attrs))
	for _, attr := range attrs {
		ss = append(ss, Eq(attr, values[attr]))
	}
	return ss
}

// OrderBy returns a Scope ordering by the named attribute.
//
//	scope.OrderBy("createdAt", true) // DESC
func OrderBy(attr string, desc bool) Scope {
	return Scope{kind: kindOrderBy, attr: attr, desc: desc}
}

// Limit returns a Scope that sets the LIMIT.
func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

// Offset returns a Scope that sets the OFFSET.
func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Fields returns a Scope restricting the selected attributes.
//
//	scope.Fields("id", "city")
func Fields(fields ...string) Scope {
	return Scope{kind: kindFields, fields: fields}
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
//
//	var s scope.Scopes
//	if onlyPrimary {
//	    s = s.Append(scope.Eq("kind", "primary"))
//	}
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge concatenates two Scopes and returns a new Scopes.
// Neither receiver nor argument is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return append(append(Scopes(nil), ss...), other...)
}

// Combine creates a Scopes from the given scopes.
//
//	scope.Combine(scope.Eq("kind", "primary"), scope.Limit(10))
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}
