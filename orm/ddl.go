package orm

import (
	"strings"

	"github.com/mickamy/assoc/schema"
)

// CreateTableSQL renders a CREATE TABLE statement for the entity,
// including foreign key clauses for its registered references. The
// entity's registry must be finalized so injected attributes and their
// constraints are present.
func CreateTableSQL(d Dialect, e *schema.Entity) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.QuoteIdent(e.Table()))
	b.WriteString(" (")

	for i, a := range e.Attributes() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(a.Column))
		b.WriteByte(' ')
		if a.AutoIncrement {
			b.WriteString(d.AutoIncrementColumn(a.Type))
		} else {
			b.WriteString(d.ColumnType(a.Type))
		}
		if !a.Nullable {
			b.WriteString(" NOT NULL")
		}
		if a.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
	}

	for _, ref := range e.References() {
		attr, ok := e.Attr(ref.Attribute)
		if !ok {
			continue
		}
		b.WriteString(", FOREIGN KEY (")
		b.WriteString(d.QuoteIdent(attr.Column))
		b.WriteString(") REFERENCES ")
		b.WriteString(d.QuoteIdent(ref.Table))
		b.WriteString(" (")
		b.WriteString(d.QuoteIdent(ref.Column))
		b.WriteString(")")
		if ref.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(string(ref.OnDelete))
		}
		if ref.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(string(ref.OnUpdate))
		}
	}

	b.WriteString(")")
	return b.String()
}
