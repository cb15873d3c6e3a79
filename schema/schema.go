package schema

import (
	"context"
	"fmt"

	"github.com/jinzhu/inflection"

	"github.com/mickamy/assoc/internal/naming"
	"github.com/mickamy/assoc/scope"
)

// Type identifies the logical attribute type. The dialect layer maps it
// to a concrete column type.
type Type int

const (
	Invalid Type = iota
	Int
	Int64
	Float
	Bool
	String
	Text
	Time
	UUID
	JSON
)

var typeNames = map[Type]string{
	Invalid: "invalid",
	Int:     "int",
	Int64:   "int64",
	Float:   "float",
	Bool:    "bool",
	String:  "string",
	Text:    "text",
	Time:    "time",
	UUID:    "uuid",
	JSON:    "json",
}

func (t Type) String() string { return typeNames[t] }

// RefAction is a referential action applied by a foreign key constraint.
type RefAction string

const (
	Cascade  RefAction = "CASCADE"
	SetNull  RefAction = "SET NULL"
	Restrict RefAction = "RESTRICT"
	NoAction RefAction = "NO ACTION"
)

// Attribute describes one logical attribute of an entity and the column
// backing it. Column defaults to the snake_case form of Name.
type Attribute struct {
	Name          string
	Column        string
	Type          Type
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       any
	DefaultFunc   func() any

	// Get, when set, transforms the stored value on Record.Get.
	// Record.Raw bypasses it.
	Get func(any) any
}

// AttrOption configures an Attribute built by Attr.
type AttrOption func(*Attribute)

// Attr builds an Attribute. Attributes are not nullable unless
// Nullable is applied.
func Attr(name string, t Type, opts ...AttrOption) *Attribute {
	a := &Attribute{Name: name, Type: t}
	for _, opt := range opts {
		opt(a)
	}
	if a.Column == "" {
		a.Column = naming.CamelToSnake(a.Name)
	}
	return a
}

// PrimaryKey marks the attribute as the entity's primary key.
func PrimaryKey(a *Attribute) { a.PrimaryKey = true }

// AutoIncrement marks the primary key as database-generated.
func AutoIncrement(a *Attribute) { a.AutoIncrement = true }

// Nullable allows NULL values.
func Nullable(a *Attribute) { a.Nullable = true }

// Column overrides the derived physical column name.
func Column(name string) AttrOption {
	return func(a *Attribute) { a.Column = name }
}

// Default sets a static default value applied on build of new records.
func Default(v any) AttrOption {
	return func(a *Attribute) { a.Default = v }
}

// DefaultFunc sets a generated default, e.g. uuid.NewString.
func DefaultFunc(fn func() any) AttrOption {
	return func(a *Attribute) { a.DefaultFunc = fn }
}

// Getter sets an entity-level read transform for the attribute.
func Getter(fn func(any) any) AttrOption {
	return func(a *Attribute) { a.Get = fn }
}

func (a *Attribute) clone() *Attribute {
	c := *a
	return &c
}

// Reference declares a foreign key constraint from Attribute to
// Table.Column on another entity.
type Reference struct {
	Attribute string
	Table     string
	Column    string
	OnDelete  RefAction
	OnUpdate  RefAction
}

// Hooks holds entity-level write callbacks. Values is the attribute set
// about to be persisted. Association-internal writes skip Update.
type Hooks struct {
	BeforeCreate func(ctx context.Context, values map[string]any) error
	BeforeUpdate func(ctx context.Context, changed map[string]any) error
}

// Entity is one registered entity definition.
type Entity struct {
	registry *Registry

	name     string
	singular string
	table    string

	attrs  []*Attribute
	byName map[string]*Attribute

	// columns is re-derived on Finalize once all injected attributes
	// are in place.
	columns []string

	pk string

	refs []Reference

	defaultScope scope.Scopes
	scopes       map[string]scope.Scopes

	hooks Hooks
}

// Name returns the entity name as registered, e.g. "Profile".
func (e *Entity) Name() string { return e.name }

// Singular returns the singular form of the entity name.
func (e *Entity) Singular() string { return e.singular }

// Table returns the physical table name.
func (e *Entity) Table() string { return e.table }

// SetTable overrides the derived table name.
func (e *Entity) SetTable(name string) *Entity {
	e.table = name
	return e
}

// Registry returns the registry this entity belongs to.
func (e *Entity) Registry() *Registry { return e.registry }

// Attr returns the attribute with the given name.
func (e *Entity) Attr(name string) (*Attribute, bool) {
	a, ok := e.byName[name]
	return a, ok
}

// Attributes returns the attributes in declaration order.
func (e *Entity) Attributes() []*Attribute {
	return append([]*Attribute(nil), e.attrs...)
}

// PrimaryKey returns the primary key attribute name.
func (e *Entity) PrimaryKey() string { return e.pk }

// Columns returns the physical column list, valid after Finalize.
func (e *Entity) Columns() []string {
	return append([]string(nil), e.columns...)
}

// ColumnOf resolves the physical column backing the named attribute.
func (e *Entity) ColumnOf(name string) (string, error) {
	a, ok := e.byName[name]
	if !ok {
		return "", &UnknownAttributeError{Entity: e.name, Attribute: name}
	}
	return a.Column, nil
}

// MergeAttribute adds attr to the entity if no attribute with that name
// exists yet. An existing attribute of the same type is left untouched;
// an existing attribute of a different type is a naming collision.
func (e *Entity) MergeAttribute(attr *Attribute) error {
	if existing, ok := e.byName[attr.Name]; ok {
		if existing.Type != attr.Type {
			return &NamingCollisionError{
				Entity:    e.name,
				Attribute: attr.Name,
				Existing:  existing.Type,
				Proposed:  attr.Type,
			}
		}
		return nil
	}
	a := attr.clone()
	if a.Column == "" {
		a.Column = naming.CamelToSnake(a.Name)
	}
	e.attrs = append(e.attrs, a)
	e.byName[a.Name] = a
	return nil
}

// AddReference registers a foreign key constraint declaration.
func (e *Entity) AddReference(ref Reference) {
	e.refs = append(e.refs, ref)
}

// References returns the registered foreign key constraints.
func (e *Entity) References() []Reference {
	return append([]Reference(nil), e.refs...)
}

// DefaultScope sets scopes applied to every query unless disabled.
func (e *Entity) DefaultScope(ss ...scope.Scope) *Entity {
	e.defaultScope = scope.Combine(ss...)
	return e
}

// Scope registers a named scope selectable per query.
func (e *Entity) Scope(name string, ss ...scope.Scope) *Entity {
	if e.scopes == nil {
		e.scopes = make(map[string]scope.Scopes)
	}
	e.scopes[name] = scope.Combine(ss...)
	return e
}

// DefaultScopes returns the default scope set.
func (e *Entity) DefaultScopes() scope.Scopes { return e.defaultScope }

// NamedScope returns the named scope set.
func (e *Entity) NamedScope(name string) (scope.Scopes, bool) {
	ss, ok := e.scopes[name]
	return ss, ok
}

// SetHooks installs entity write hooks.
func (e *Entity) SetHooks(h Hooks) *Entity {
	e.hooks = h
	return e
}

// EntityHooks returns the installed hooks.
func (e *Entity) EntityHooks() Hooks { return e.hooks }

func (e *Entity) deriveColumns() {
	cols := make([]string, 0, len(e.attrs))
	for _, a := range e.attrs {
		cols = append(cols, a.Column)
	}
	e.columns = cols
}

// Registry holds entity definitions and drives the two-phase build:
// Define collects raw attributes, relationship declarations queue
// injections, Finalize resolves everything once all entities are known.
// This tolerates circular relationship declarations between entities.
type Registry struct {
	entities map[string]*Entity
	order    []string

	injects  []func() error
	resolves []func() error

	finalized bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Define registers an entity with the given attributes. The table name
// is the snake_case plural of name; exactly one attribute must be the
// primary key.
func (r *Registry) Define(name string, attrs ...*Attribute) (*Entity, error) {
	if _, ok := r.entities[name]; ok {
		return nil, fmt.Errorf("schema: entity %q already defined", name)
	}
	e := &Entity{
		registry: r,
		name:     name,
		singular: inflection.Singular(name),
		table:    inflection.Plural(naming.CamelToSnake(name)),
		byName:   make(map[string]*Attribute),
	}
	for _, attr := range attrs {
		a := attr.clone()
		if _, ok := e.byName[a.Name]; ok {
			return nil, fmt.Errorf("schema: entity %q declares attribute %q twice", name, a.Name)
		}
		e.attrs = append(e.attrs, a)
		e.byName[a.Name] = a
		if a.PrimaryKey {
			if e.pk != "" {
				return nil, fmt.Errorf("schema: entity %q declares multiple primary keys (%s, %s)", name, e.pk, a.Name)
			}
			e.pk = a.Name
		}
	}
	if e.pk == "" {
		return nil, fmt.Errorf("schema: entity %q has no primary key", name)
	}
	e.deriveColumns()
	r.entities[name] = e
	r.order = append(r.order, name)
	return e, nil
}

// MustDefine is Define that panics on error, for static setup code.
func (r *Registry) MustDefine(name string, attrs ...*Attribute) *Entity {
	e, err := r.Define(name, attrs...)
	if err != nil {
		panic(err)
	}
	return e
}

// Entity looks up a registered entity by name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// MustEntity is Entity that panics when the entity is missing.
func (r *Registry) MustEntity(name string) *Entity {
	e, ok := r.entities[name]
	if !ok {
		panic(fmt.Sprintf("schema: entity %q not defined", name))
	}
	return e
}

// Entities returns the registered entities in definition order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

// DeferInject queues an attribute injection to run during Finalize,
// before column lists are re-derived.
func (r *Registry) DeferInject(fn func() error) {
	r.injects = append(r.injects, fn)
}

// DeferResolve queues a resolution step to run during Finalize, after
// all injections and column re-derivation.
func (r *Registry) DeferResolve(fn func() error) {
	r.resolves = append(r.resolves, fn)
}

// Finalized reports whether Finalize has completed.
func (r *Registry) Finalized() bool { return r.finalized }

// Finalize runs queued injections, re-derives every entity's column
// list, then runs queued resolutions. It must be called once after all
// entities and relationships are declared, before any query runs.
func (r *Registry) Finalize() error {
	for _, fn := range r.injects {
		if err := fn(); err != nil {
			return err
		}
	}
	r.injects = nil
	for _, name := range r.order {
		r.entities[name].deriveColumns()
	}
	for _, fn := range r.resolves {
		if err := fn(); err != nil {
			return err
		}
	}
	r.resolves = nil
	r.finalized = true
	return nil
}
