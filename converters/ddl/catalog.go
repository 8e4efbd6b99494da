package ddl

import (
	"sort"
	"strings"

	"github.com/darianmavgo/garsql/converters/dialect"
)

// Key is a secondary index.
type Key struct {
	Name    string // defaults to the column names joined by "_"
	Columns []string
	Unique  bool
}

// TableIndex lists the keys of one table.
type TableIndex struct {
	Primary []string
	Keys    []Key
}

// Catalog maps table titles to their keys.
type Catalog map[string]TableIndex

func objectKeys() TableIndex {
	return TableIndex{
		Primary: []string{"ID"},
		Keys:    []Key{{Columns: []string{"OBJECTID"}}, {Columns: []string{"OBJECTGUID"}}},
	}
}

func paramKeys() TableIndex {
	return TableIndex{
		Primary: []string{"ID"},
		Keys:    []Key{{Columns: []string{"OBJECTID"}}, {Columns: []string{"TYPEID"}}},
	}
}

func hierarchyKeys() TableIndex {
	return TableIndex{
		Primary: []string{"ID"},
		Keys:    []Key{{Columns: []string{"OBJECTID"}}, {Columns: []string{"PARENTOBJID"}}},
	}
}

func idOnly() TableIndex {
	return TableIndex{Primary: []string{"ID"}}
}

// DefaultCatalog returns the keys of the GAR tables.
func DefaultCatalog() Catalog {
	return Catalog{
		"ADDR_OBJ":          objectKeys(),
		"ADDR_OBJ_DIVISION": {Primary: []string{"ID"}, Keys: []Key{{Columns: []string{"PARENTID"}}, {Columns: []string{"CHILDID"}}}},
		"ADDR_OBJ_PARAMS":   paramKeys(),
		"ADM_HIERARCHY":     hierarchyKeys(),
		"APARTMENTS":        objectKeys(),
		"APARTMENTS_PARAMS": paramKeys(),
		"CARPLACES":         objectKeys(),
		"CARPLACES_PARAMS":  paramKeys(),
		"CHANGE_HISTORY":    {Primary: []string{"CHANGEID"}, Keys: []Key{{Columns: []string{"OBJECTID"}}}},
		"HOUSES":            objectKeys(),
		"HOUSES_PARAMS":     paramKeys(),
		"MUN_HIERARCHY":     hierarchyKeys(),
		"NORMATIVE_DOCS":    idOnly(),
		"REESTR_OBJECTS":    {Primary: []string{"OBJECTID"}, Keys: []Key{{Columns: []string{"OBJECTGUID"}, Unique: true}}},
		"ROOMS":             objectKeys(),
		"ROOMS_PARAMS":      paramKeys(),
		"STEADS":            objectKeys(),
		"STEADS_PARAMS":     paramKeys(),

		"ADDHOUSE_TYPES":       idOnly(),
		"ADDR_OBJ_TYPES":       idOnly(),
		"APARTMENT_TYPES":      idOnly(),
		"HOUSE_TYPES":          idOnly(),
		"NORMATIVE_DOCS_KINDS": idOnly(),
		"NORMATIVE_DOCS_TYPES": idOnly(),
		"OBJECT_LEVELS":        {Primary: []string{"LEVEL"}},
		"OPERATION_TYPES":      idOnly(),
		"PARAM_TYPES":          idOnly(),
		"ROOM_TYPES":           idOnly(),
	}
}

// Merge returns a new catalog where entries of other replace those of c.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Tables returns the catalog's table titles, sorted.
func (c Catalog) Tables() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Deriver renders the catalog for dialect p.
func (c Catalog) Deriver(p *dialect.Profile) IndexDeriver {
	return &catalogDeriver{catalog: c, profile: p}
}

type catalogDeriver struct {
	catalog Catalog
	profile *dialect.Profile
}

var (
	_ IndexDeriver     = (*catalogDeriver)(nil)
	_ StatementDeriver = (*catalogDeriver)(nil)
)

func keyName(table string, k Key) string {
	name := k.Name
	if name == "" {
		name = strings.Join(k.Columns, "_")
	}
	return table + "_" + name
}

// IndexDefinition implements IndexDeriver.
func (d *catalogDeriver) IndexDefinition(table string) string {
	ti, ok := d.catalog[table]
	if !ok {
		return ""
	}
	p := d.profile

	if p.Name == dialect.ClickHouse {
		if len(ti.Primary) == 0 {
			return ""
		}
		return "ORDER BY (" + p.QuoteIdents(ti.Primary) + ")"
	}

	var parts []string
	if len(ti.Primary) > 0 {
		parts = append(parts, "PRIMARY KEY ("+p.QuoteIdents(ti.Primary)+")")
	}
	for _, k := range ti.Keys {
		name := p.QuoteIdent(keyName(table, k))
		switch {
		case p.Name == dialect.MySQL && k.Unique:
			parts = append(parts, "UNIQUE KEY "+name+" ("+p.QuoteIdents(k.Columns)+")")
		case p.Name == dialect.MySQL:
			parts = append(parts, "KEY "+name+" ("+p.QuoteIdents(k.Columns)+")")
		case k.Unique:
			parts = append(parts, "CONSTRAINT "+name+" UNIQUE ("+p.QuoteIdents(k.Columns)+")")
		}
	}
	return strings.Join(parts, ",\n\t")
}

// IndexStatements implements StatementDeriver. Only dialects without inline
// secondary keys produce statements.
func (d *catalogDeriver) IndexStatements(table string) string {
	ti, ok := d.catalog[table]
	p := d.profile
	if !ok || p.Name == dialect.MySQL || p.Name == dialect.ClickHouse {
		return ""
	}
	var b strings.Builder
	for _, k := range ti.Keys {
		if k.Unique {
			continue
		}
		b.WriteString("CREATE INDEX IF NOT EXISTS ")
		b.WriteString(p.QuoteIdent(keyName(table, k)))
		b.WriteString(" ON ")
		b.WriteString(p.QuoteIdent(table))
		b.WriteString(" (")
		b.WriteString(p.QuoteIdents(k.Columns))
		b.WriteString(");\n")
	}
	return b.String()
}
