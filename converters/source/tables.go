package source

import (
	"strings"

	"github.com/darianmavgo/garsql/converters/common"
)

// Table is one GAR table title and the XSD entity that describes it.
type Table struct {
	Name     string
	Entity   string
	Regional bool // data lives in numeric region directories
}

// Region independent tables, in conversion order.
var commonTables = []Table{
	{Name: "ADDHOUSE_TYPES", Entity: "HOUSE_TYPES"},
	{Name: "ADDR_OBJ_TYPES", Entity: "ADDR_OBJ_TYPES"},
	{Name: "APARTMENT_TYPES", Entity: "APARTMENT_TYPES"},
	{Name: "HOUSE_TYPES", Entity: "HOUSE_TYPES"},
	{Name: "NORMATIVE_DOCS_KINDS", Entity: "NORMATIVE_DOCS_KINDS"},
	{Name: "NORMATIVE_DOCS_TYPES", Entity: "NORMATIVE_DOCS_TYPES"},
	{Name: "OBJECT_LEVELS", Entity: "OBJECT_LEVELS"},
	{Name: "OPERATION_TYPES", Entity: "OPERATION_TYPES"},
	{Name: "PARAM_TYPES", Entity: "PARAM_TYPES"},
	{Name: "ROOM_TYPES", Entity: "ROOM_TYPES"},
}

// Per-region tables, in conversion order.
var regionTables = []Table{
	{Name: "ADDR_OBJ", Entity: "ADDR_OBJ", Regional: true},
	{Name: "ADDR_OBJ_DIVISION", Entity: "ADDR_OBJ_DIVISION", Regional: true},
	{Name: "ADDR_OBJ_PARAMS", Entity: "PARAM", Regional: true},
	{Name: "ADM_HIERARCHY", Entity: "ADM_HIERARCHY", Regional: true},
	{Name: "APARTMENTS", Entity: "APARTMENTS", Regional: true},
	{Name: "APARTMENTS_PARAMS", Entity: "PARAM", Regional: true},
	{Name: "CARPLACES", Entity: "CARPLACES", Regional: true},
	{Name: "CARPLACES_PARAMS", Entity: "PARAM", Regional: true},
	{Name: "CHANGE_HISTORY", Entity: "CHANGE_HISTORY", Regional: true},
	{Name: "HOUSES", Entity: "HOUSES", Regional: true},
	{Name: "HOUSES_PARAMS", Entity: "PARAM", Regional: true},
	{Name: "MUN_HIERARCHY", Entity: "MUN_HIERARCHY", Regional: true},
	{Name: "NORMATIVE_DOCS", Entity: "NORMATIVE_DOCS", Regional: true},
	{Name: "REESTR_OBJECTS", Entity: "REESTR_OBJECTS", Regional: true},
	{Name: "ROOMS", Entity: "ROOMS", Regional: true},
	{Name: "ROOMS_PARAMS", Entity: "PARAM", Regional: true},
	{Name: "STEADS", Entity: "STEADS", Regional: true},
	{Name: "STEADS_PARAMS", Entity: "PARAM", Regional: true},
}

// CommonTables returns the region independent tables.
func CommonTables() []Table { return append([]Table(nil), commonTables...) }

// RegionTables returns the per-region tables.
func RegionTables() []Table { return append([]Table(nil), regionTables...) }

// KnownTables returns every table, common ones first.
func KnownTables() []Table {
	return append(CommonTables(), regionTables...)
}

// LookupTable finds a table by title, case-insensitively.
func LookupTable(name string) (Table, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, t := range KnownTables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// SelectTables returns the known tables whose titles are in names, in
// conversion order. An empty list selects every table.
func SelectTables(names []string) ([]Table, error) {
	if len(names) == 0 {
		return KnownTables(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		t, ok := LookupTable(n)
		if !ok {
			return nil, &common.ConfigurationError{Setting: "tables", Value: n, Msg: "unknown table"}
		}
		want[t.Name] = true
	}
	var out []Table
	for _, t := range KnownTables() {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}
