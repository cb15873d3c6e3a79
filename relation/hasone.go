// Package relation implements one-to-one relationships between entities
// registered in a schema.Registry. Declaring a relationship resolves the
// join keys, injects the foreign key attribute into the target entity
// and registers its referential constraint; at runtime the relationship
// is read, reassigned and created through HasOne's methods or the
// conventional accessors.
package relation

import (
	"github.com/go-openapi/inflect"
	"github.com/jinzhu/inflection"

	"github.com/mickamy/assoc/internal/naming"
	"github.com/mickamy/assoc/schema"
)

// HasOne is a declared one-to-one relationship: the target entity
// carries a foreign key referencing the source entity's source key. It
// is immutable after declaration except for the identifier field, which
// is resolved when the registry is finalized.
type HasOne struct {
	source *schema.Entity
	target *schema.Entity

	alias string

	foreignKey string
	fkAttr     *schema.Attribute

	sourceKey          string
	sourceKeyField     string
	sourceKeyIsPrimary bool

	// scope holds fixed attribute values every related record must
	// carry: an extra filter on reads, forced values on writes.
	scope map[string]any

	onDelete schema.RefAction
	onUpdate schema.RefAction

	constraints bool
	required    bool

	// identifierField is the physical column backing the foreign key,
	// filled in during registry finalization.
	identifierField string
}

type config struct {
	alias       string
	foreignKey  string
	fkAttr      *schema.Attribute
	sourceKey   string
	scope       map[string]any
	onDelete    schema.RefAction
	onUpdate    schema.RefAction
	constraints bool
	required    bool
}

// Option configures a relationship declaration.
type Option func(*config)

// Alias names the relationship. Defaults to the target entity's
// singular name.
func Alias(name string) Option {
	return func(c *config) { c.alias = name }
}

// ForeignKey sets the foreign key attribute name explicitly.
func ForeignKey(name string) Option {
	return func(c *config) { c.foreignKey = name }
}

// ForeignKeyAttribute supplies a full attribute spec for the foreign
// key. Its name (and column override) are used verbatim; its type and
// nullability override the derived defaults.
func ForeignKeyAttribute(attr *schema.Attribute) Option {
	return func(c *config) { c.fkAttr = attr }
}

// SourceKey joins on the named source attribute instead of the source
// entity's primary key.
func SourceKey(name string) Option {
	return func(c *config) { c.sourceKey = name }
}

// Scope fixes attribute values shared by every record in this
// relationship.
func Scope(values map[string]any) Option {
	return func(c *config) {
		c.scope = make(map[string]any, len(values))
		for k, v := range values {
			c.scope[k] = v
		}
	}
}

// Required makes the foreign key non-nullable.
func Required(c *config) { c.required = true }

// OnDelete overrides the delete referential action.
func OnDelete(a schema.RefAction) Option {
	return func(c *config) { c.onDelete = a }
}

// OnUpdate overrides the update referential action.
func OnUpdate(a schema.RefAction) Option {
	return func(c *config) { c.onUpdate = a }
}

// WithoutConstraints skips registering the referential constraint.
func WithoutConstraints(c *config) { c.constraints = false }

// New declares a has-one relationship from source to target. The
// foreign key lands on the target entity when the registry is
// finalized. Schema misconfiguration fails here or during Finalize,
// never at query time.
func New(source, target *schema.Entity, opts ...Option) (*HasOne, error) {
	cfg := config{constraints: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &HasOne{
		source:      source,
		target:      target,
		fkAttr:      cfg.fkAttr,
		scope:       cfg.scope,
		onDelete:    cfg.onDelete,
		onUpdate:    cfg.onUpdate,
		constraints: cfg.constraints,
		required:    cfg.required,
	}

	h.alias = cfg.alias
	if h.alias == "" {
		h.alias = inflection.Singular(target.Name())
	}

	h.sourceKey = cfg.sourceKey
	if h.sourceKey == "" {
		h.sourceKey = source.PrimaryKey()
	} else if _, ok := source.Attr(h.sourceKey); !ok {
		return nil, &schema.UnknownAttributeError{Entity: source.Name(), Attribute: h.sourceKey}
	}
	h.sourceKeyIsPrimary = h.sourceKey == source.PrimaryKey()

	h.foreignKey = resolveForeignKey(cfg, source, h.sourceKey)

	reg := source.Registry()
	reg.DeferInject(h.inject)
	reg.DeferResolve(h.resolve)
	return h, nil
}

// MustNew is New that panics on error, for static setup code.
func MustNew(source, target *schema.Entity, opts ...Option) *HasOne {
	h, err := New(source, target, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// resolveForeignKey picks the foreign key name: an explicit attribute
// spec wins, then an explicit name, then the camelCased join of the
// singular alias-or-source name and the source key.
func resolveForeignKey(cfg config, source *schema.Entity, sourceKey string) string {
	if cfg.fkAttr != nil && cfg.fkAttr.Name != "" {
		return cfg.fkAttr.Name
	}
	if cfg.foreignKey != "" {
		return cfg.foreignKey
	}
	base := cfg.alias
	if base == "" {
		base = source.Name()
	}
	joined := naming.CamelToSnake(inflection.Singular(base)) + "_" + naming.CamelToSnake(sourceKey)
	return inflect.CamelizeDownFirst(joined)
}

// inject runs during registry finalization: it merges the foreign key
// attribute into the target schema and registers the referential
// constraint.
func (h *HasOne) inject() error {
	srcAttr, ok := h.source.Attr(h.sourceKey)
	if !ok {
		return &schema.UnknownAttributeError{Entity: h.source.Name(), Attribute: h.sourceKey}
	}
	h.sourceKeyField = srcAttr.Column

	attr := &schema.Attribute{Name: h.foreignKey, Nullable: true}
	if h.fkAttr != nil {
		spec := *h.fkAttr
		spec.Name = h.foreignKey
		attr = &spec
	}
	if attr.Type == schema.Invalid {
		attr.Type = srcAttr.Type
	}
	if h.required {
		attr.Nullable = false
	}

	if err := h.target.MergeAttribute(attr); err != nil {
		return err
	}

	if h.constraints {
		merged, _ := h.target.Attr(h.foreignKey)
		onDelete := h.onDelete
		if onDelete == "" {
			// Defaults depend on the merged attribute spec, not the
			// raw option: a nullable key detaches, a required one
			// cascades.
			if merged.Nullable {
				onDelete = schema.SetNull
			} else {
				onDelete = schema.Cascade
			}
		}
		onUpdate := h.onUpdate
		if onUpdate == "" {
			onUpdate = schema.Cascade
		}
		h.target.AddReference(schema.Reference{
			Attribute: h.foreignKey,
			Table:     h.source.Table(),
			Column:    h.sourceKeyField,
			OnDelete:  onDelete,
			OnUpdate:  onUpdate,
		})
	}
	return nil
}

// resolve fills in the physical column backing the foreign key once all
// injections have run and column lists are re-derived.
func (h *HasOne) resolve() error {
	col, err := h.target.ColumnOf(h.foreignKey)
	if err != nil {
		return err
	}
	h.identifierField = col
	return nil
}

// Source returns the source entity.
func (h *HasOne) Source() *schema.Entity { return h.source }

// Target returns the target entity.
func (h *HasOne) Target() *schema.Entity { return h.target }

// Alias returns the relationship alias.
func (h *HasOne) Alias() string { return h.alias }

// ForeignKey returns the foreign key attribute name on the target.
func (h *HasOne) ForeignKey() string { return h.foreignKey }

// SourceKey returns the source attribute joined on.
func (h *HasOne) SourceKey() string { return h.sourceKey }

// SourceKeyField returns the physical column backing the source key.
func (h *HasOne) SourceKeyField() string { return h.sourceKeyField }

// SourceKeyIsPrimary reports whether the join uses the source primary key.
func (h *HasOne) SourceKeyIsPrimary() bool { return h.sourceKeyIsPrimary }

// IdentifierField returns the physical column backing the foreign key,
// available after the registry is finalized.
func (h *HasOne) IdentifierField() string { return h.identifierField }
