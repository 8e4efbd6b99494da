package converters

import (
	"sort"
	"strings"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/dialect"
)

// FormatXLSX selects spreadsheet output instead of a text dialect.
const FormatXLSX = "xlsx"

// Format is a resolved output format. Text formats carry a dialect profile;
// the workbook format has none.
type Format struct {
	Name    string
	Ext     string
	Profile *dialect.Profile
}

// Workbook reports whether the format writes xlsx workbooks.
func (f Format) Workbook() bool { return f.Profile == nil }

var extensions = map[string]string{
	dialect.CSV:  "csv",
	dialect.TSV:  "tsv",
	dialect.HTML: "html",
	FormatXLSX:   "xlsx",
}

// LookupFormat resolves a format name or alias. The set of formats is fixed at
// build time.
func LookupFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == FormatXLSX || key == "excel" {
		return Format{Name: FormatXLSX, Ext: extensions[FormatXLSX]}, nil
	}
	p, err := dialect.Lookup(key)
	if err != nil {
		if ce, ok := err.(*common.ConfigurationError); ok {
			ce.Msg = "unknown format, want one of " + strings.Join(Formats(), ", ")
		}
		return Format{}, err
	}
	ext, ok := extensions[p.Name]
	if !ok {
		ext = "sql"
	}
	return Format{Name: p.Name, Ext: ext, Profile: p}, nil
}

// Formats returns a sorted list of the format names.
func Formats() []string {
	list := append(dialect.Names(), FormatXLSX)
	sort.Strings(list)
	return list
}
