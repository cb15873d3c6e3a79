package orm

import "strings"

// quoteColumns joins column names with dialect-aware quoting.
func quoteColumns(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// placeholderList returns "?, ?, ..." with count placeholders.
func placeholderList(count int) string {
	if count <= 0 {
		return ""
	}
	parts := make([]string, count)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// rewritePlaceholders converts ? placeholders to dialect-specific ones.
// For MySQL this is a no-op. For PostgreSQL, ? becomes $1, $2, etc.
func rewritePlaceholders(d Dialect, query string) string {
	if _, ok := d.(mysqlDialect); ok {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// qualifiedTable renders the table reference, optionally schema-qualified.
func qualifiedTable(d Dialect, dbSchema, table string) string {
	if dbSchema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(dbSchema) + "." + d.QuoteIdent(table)
}
