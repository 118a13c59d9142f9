// Package query builds parameterized SELECT statements over a single aliased table.
package query

import "strings"

// ProjectionMap binds view field names to alias-qualified columns of one table.
// Insertion order of Project calls is the SELECT column order.
type ProjectionMap struct {
	source  string
	alias   string
	fields  map[string]string
	ordered []string
}

// NewProjectionMap starts a projection over schema.table using alias as the column qualifier.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		source: schema + "." + table + " " + alias,
		alias:  alias,
		fields: make(map[string]string),
	}
}

// Project maps column to the view field name.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.fields[field] = qualified
	p.ordered = append(p.ordered, qualified)
	return p
}

// Table is the FROM target, "schema.table alias".
func (p *ProjectionMap) Table() string {
	return p.source
}

// Column resolves a field to its qualified column. Unmapped names are
// returned unchanged so callers may pass raw column expressions.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.Lookup(field); ok {
		return col
	}
	return field
}

// Lookup resolves a field only when it was projected.
func (p *ProjectionMap) Lookup(field string) (string, bool) {
	col, ok := p.fields[field]
	return col, ok
}

// Columns is the SELECT list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.ordered, ", ")
}
