package orm

import (
	"fmt"

	"github.com/mickamy/assoc/schema"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL returns "?" regardless of index; PostgreSQL
	// returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words. MySQL uses backticks; PostgreSQL uses
	// double quotes.
	QuoteIdent(name string) string

	// UseReturning reports whether INSERT should use a RETURNING clause
	// to retrieve the auto-generated primary key (PostgreSQL) rather
	// than relying on LastInsertId (MySQL).
	UseReturning() bool

	// ReturningClause returns the RETURNING clause appended to INSERT
	// statements. Returns an empty string for dialects that do not
	// support RETURNING (MySQL).
	ReturningClause(pk string) string

	// ColumnType maps a logical attribute type to a column type for DDL.
	ColumnType(t schema.Type) string

	// AutoIncrementColumn returns the column type for an auto-generated
	// integer primary key.
	AutoIncrementColumn(t schema.Type) string
}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

type mysqlDialect struct{}

func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) QuoteIdent(name string) string   { return "`" + name + "`" }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }

func (mysqlDialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Int:
		return "INT"
	case schema.Int64:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE"
	case schema.Bool:
		return "TINYINT(1)"
	case schema.String:
		return "VARCHAR(255)"
	case schema.Text:
		return "TEXT"
	case schema.Time:
		return "DATETIME"
	case schema.UUID:
		return "CHAR(36)"
	case schema.JSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

func (d mysqlDialect) AutoIncrementColumn(t schema.Type) string {
	return d.ColumnType(t) + " AUTO_INCREMENT"
}

type postgresDialect struct{}

func (postgresDialect) Placeholder(index int) string     { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (postgresDialect) UseReturning() bool               { return true }
func (postgresDialect) ReturningClause(pk string) string { return ` RETURNING "` + pk + `"` }

func (postgresDialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Int:
		return "INTEGER"
	case schema.Int64:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE PRECISION"
	case schema.Bool:
		return "BOOLEAN"
	case schema.String:
		return "VARCHAR(255)"
	case schema.Text:
		return "TEXT"
	case schema.Time:
		return "TIMESTAMPTZ"
	case schema.UUID:
		return "UUID"
	case schema.JSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (postgresDialect) AutoIncrementColumn(t schema.Type) string {
	if t == schema.Int64 {
		return "BIGSERIAL"
	}
	return "SERIAL"
}
