// Package schema reads the XSD fragments shipped with a GAR export and turns
// each into a TableSchema: the ordered field list and the tag name of the
// element that carries one row.
//
// The XSD is used as a metadata source only. Nothing here validates data
// files against it.
package schema

// Field is one column derived from an xs:attribute declaration.
type Field struct {
	Name        string
	Type        string // XSD base type local name, e.g. "string", "long", "date"
	MaxLength   int    // maxLength or length facet, 0 when unbounded
	TotalDigits int    // totalDigits facet, 0 when absent
	Required    bool   // use="required"
	Doc         string // xs:documentation text
}

// TableSchema describes one table of the export.
type TableSchema struct {
	Name   string  // table title, e.g. HOUSES_PARAMS
	Entity string  // top-level collection element, e.g. PARAMS
	Tag    string  // repeating element carrying one row, e.g. PARAM
	Doc    string  // documentation of the repeating element, if any
	Fields []Field // column order, identical to document order
}

// FieldNames returns the column names in order.
func (s *TableSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// WithName returns a shallow copy of s under another table title. Several
// GAR tables (ADDR_OBJ_PARAMS, HOUSES_PARAMS, ...) share one XSD entity.
func (s *TableSchema) WithName(name string) *TableSchema {
	cp := *s
	cp.Name = name
	return &cp
}
