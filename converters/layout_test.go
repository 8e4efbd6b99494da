package converters

import (
	"errors"
	"strings"
	"testing"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/source"
)

func planTables() []source.Table {
	levels, _ := source.LookupTable("OBJECT_LEVELS")
	houses, _ := source.LookupTable("HOUSES")
	steads, _ := source.LookupTable("STEADS")
	return []source.Table{levels, houses, steads}
}

func unitNames(units []Unit) string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return strings.Join(names, ",")
}

func sectionTitles(u Unit) string {
	titles := make([]string, len(u.Sections))
	for i, s := range u.Sections {
		titles[i] = s.Title()
	}
	return strings.Join(titles, ",")
}

func TestPlan(t *testing.T) {
	regions := []string{"01", "02"}
	tests := []struct {
		layout   string
		units    string
		sections []string
	}{
		{
			layout:   LayoutDirect,
			units:    "gar.sql",
			sections: []string{"OBJECT_LEVELS,01 HOUSES,01 STEADS,02 HOUSES,02 STEADS"},
		},
		{
			layout:   LayoutPerRegion,
			units:    "OBJECT_LEVELS.sql,01.sql,02.sql",
			sections: []string{"OBJECT_LEVELS", "01 HOUSES,01 STEADS", "02 HOUSES,02 STEADS"},
		},
		{
			layout:   LayoutPerTable,
			units:    "OBJECT_LEVELS.sql,HOUSES.sql,STEADS.sql",
			sections: []string{"OBJECT_LEVELS", "01 HOUSES,02 HOUSES", "01 STEADS,02 STEADS"},
		},
		{
			layout:   LayoutRegionTree,
			units:    "OBJECT_LEVELS.sql,01/HOUSES.sql,01/STEADS.sql,02/HOUSES.sql,02/STEADS.sql",
			sections: []string{"OBJECT_LEVELS", "01 HOUSES", "01 STEADS", "02 HOUSES", "02 STEADS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			units, err := Plan(tt.layout, planTables(), regions, "sql", "gar.sql")
			if err != nil {
				t.Fatalf("Failed to plan: %v", err)
			}
			if got := unitNames(units); got != tt.units {
				t.Fatalf("units = %s, want %s", got, tt.units)
			}
			for i, want := range tt.sections {
				if got := sectionTitles(units[i]); got != want {
					t.Errorf("unit %s sections = %s, want %s", units[i].Name, got, want)
				}
			}
		})
	}
}

func TestPlanSeparators(t *testing.T) {
	units, err := Plan(LayoutPerTable, planTables(), []string{"01"}, "sql", "")
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if units[0].Sections[0].Separator {
		t.Error("a common table alone in its file has no separator")
	}
	if !units[1].Sections[0].Separator {
		t.Error("regional sections are separated")
	}
}

func TestPlanSkipsEmptyUnits(t *testing.T) {
	levels, _ := source.LookupTable("OBJECT_LEVELS")
	units, err := Plan(LayoutPerRegion, []source.Table{levels}, []string{"01", "02"}, "csv", "")
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if got := unitNames(units); got != "OBJECT_LEVELS.csv" {
		t.Errorf("units = %s", got)
	}

	units, err = Plan(LayoutDirect, nil, nil, "sql", "gar.sql")
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("got %d units for an empty selection", len(units))
	}
}

func TestPlanUnknownLayout(t *testing.T) {
	_, err := Plan("flat", planTables(), nil, "sql", "")
	var ce *common.ConfigurationError
	if !errors.As(err, &ce) || ce.Setting != "layout" {
		t.Fatalf("Plan error = %v, want layout ConfigurationError", err)
	}
}
