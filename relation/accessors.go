package relation

import (
	"context"

	"github.com/go-openapi/inflect"

	"github.com/mickamy/assoc/orm"
)

// Accessors exposes the relationship through conventionally named
// operations derived from the alias: for alias "Address" they are
// GetAddress, SetAddress and CreateAddress.
type Accessors struct {
	GetName    string
	SetName    string
	CreateName string

	Get    func(ctx context.Context, db orm.Querier, source *orm.Record, opts *FindOptions) (*orm.Record, error)
	Set    func(ctx context.Context, db orm.Querier, source *orm.Record, candidate Candidate, opts *SetOptions) (*orm.Record, error)
	Create func(ctx context.Context, db orm.Querier, source *orm.Record, values map[string]any, opts *CreateOptions) (*orm.Record, error)
}

// Accessors returns the bound accessor set for this relationship.
func (h *HasOne) Accessors() Accessors {
	name := inflect.Camelize(h.alias)
	return Accessors{
		GetName:    "Get" + name,
		SetName:    "Set" + name,
		CreateName: "Create" + name,
		Get:        h.GetOne,
		Set:        h.Set,
		Create:     h.Create,
	}
}
