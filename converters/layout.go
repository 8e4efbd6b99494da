package converters

import (
	"path"
	"strings"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/source"
)

// Output layouts.
const (
	LayoutDirect     = "direct"      // everything in one file
	LayoutPerRegion  = "per_region"  // one file per common table, one per region
	LayoutPerTable   = "per_table"   // one file per table, regions concatenated
	LayoutRegionTree = "region_tree" // one file per common table, <region>/<table> for the rest
)

// Layouts lists the supported layouts.
func Layouts() []string {
	return []string{LayoutDirect, LayoutPerRegion, LayoutPerTable, LayoutRegionTree}
}

// Section is one table of one region written into a unit. Region is empty
// for common tables.
type Section struct {
	Table     source.Table
	Region    string
	Separator bool // precede with a table separator comment
}

// Title names the section in logs, separators and sheet names.
func (s Section) Title() string {
	if s.Region == "" {
		return s.Table.Name
	}
	return s.Region + " " + s.Table.Name
}

// Unit is one output file. Units are independent and may be written
// concurrently; the sections of a unit are written in order.
type Unit struct {
	Name     string // slash-separated path relative to the output directory
	Sections []Section
}

// Plan splits the selected tables and regions into output units. direct is
// the file name used by LayoutDirect.
func Plan(layout string, tables []source.Table, regions []string, ext, direct string) ([]Unit, error) {
	var shared, regional []source.Table
	for _, t := range tables {
		if t.Regional {
			regional = append(regional, t)
		} else {
			shared = append(shared, t)
		}
	}
	file := func(parts ...string) string {
		return path.Join(parts...) + "." + ext
	}

	var units []Unit
	add := func(u Unit) {
		if len(u.Sections) > 0 {
			units = append(units, u)
		}
	}

	switch strings.ToLower(layout) {
	case LayoutDirect, "":
		u := Unit{Name: direct}
		for _, t := range shared {
			u.Sections = append(u.Sections, Section{Table: t, Separator: true})
		}
		for _, r := range regions {
			for _, t := range regional {
				u.Sections = append(u.Sections, Section{Table: t, Region: r, Separator: true})
			}
		}
		add(u)

	case LayoutPerRegion:
		for _, t := range shared {
			add(Unit{Name: file(t.Name), Sections: []Section{{Table: t, Separator: true}}})
		}
		for _, r := range regions {
			u := Unit{Name: file(r)}
			for _, t := range regional {
				u.Sections = append(u.Sections, Section{Table: t, Region: r, Separator: true})
			}
			add(u)
		}

	case LayoutPerTable:
		for _, t := range shared {
			add(Unit{Name: file(t.Name), Sections: []Section{{Table: t}}})
		}
		for _, t := range regional {
			u := Unit{Name: file(t.Name)}
			for _, r := range regions {
				u.Sections = append(u.Sections, Section{Table: t, Region: r, Separator: true})
			}
			add(u)
		}

	case LayoutRegionTree:
		for _, t := range shared {
			add(Unit{Name: file(t.Name), Sections: []Section{{Table: t}}})
		}
		for _, r := range regions {
			for _, t := range regional {
				add(Unit{Name: file(r, t.Name), Sections: []Section{{Table: t, Region: r, Separator: true}}})
			}
		}

	default:
		return nil, &common.ConfigurationError{
			Setting: "layout",
			Value:   layout,
			Msg:     "unknown layout, want one of " + strings.Join(Layouts(), ", "),
		}
	}
	return units, nil
}
