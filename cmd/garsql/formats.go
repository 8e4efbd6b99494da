package main

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/darianmavgo/garsql/converters"
	"github.com/darianmavgo/garsql/converters/ddl"
	"github.com/darianmavgo/garsql/converters/source"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats, layouts and known tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Format", "Extension", "Table definitions"}}
			for _, name := range converters.Formats() {
				f, err := converters.LookupFormat(name)
				if err != nil {
					return err
				}
				ddlSupport := "no"
				if !f.Workbook() && ddl.Supports(f.Profile) {
					ddlSupport = "yes"
				}
				data = append(data, []string{f.Name, f.Ext, ddlSupport})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}

			pterm.Println()
			pterm.Println("Layouts: " + strings.Join(converters.Layouts(), ", "))

			var shared, regional []string
			for _, t := range source.KnownTables() {
				if t.Regional {
					regional = append(regional, t.Name)
				} else {
					shared = append(shared, t.Name)
				}
			}
			pterm.Println("Common tables: " + strings.Join(shared, ", "))
			pterm.Println("Region tables: " + strings.Join(regional, ", "))
			return nil
		},
	}
}
