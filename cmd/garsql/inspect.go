package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/darianmavgo/garsql/config"
	"github.com/darianmavgo/garsql/converters"
	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/source"
)

// openExport builds a converter for commands that only read schemas.
func openExport(input, schemaPath, format string, fc *config.Config) (*converters.Converter, error) {
	cc := fc.Conversion()
	cc.InputPath = input
	if schemaPath != "" {
		cc.SchemaPath = schemaPath
	}
	if cc.SchemaPath == "" {
		cc.SchemaPath = input
	}
	if format != "" {
		cc.Format = format
	}
	return converters.New(cc, converters.WithCatalog(fc.Catalog()))
}

func selectTables(args []string) ([]source.Table, error) {
	var names []string
	for _, a := range args {
		names = append(names, common.SplitList(a)...)
	}
	return source.SelectTables(names)
}

func newSchemaCmd() *cobra.Command {
	var configPath, schemaPath string
	cmd := &cobra.Command{
		Use:   "schema <input> [table...]",
		Short: "Show the fields the XSD files declare",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := config.LoadOptional(configPath)
			if err != nil {
				return err
			}
			conv, err := openExport(args[0], schemaPath, "", fc)
			if err != nil {
				return err
			}
			defer conv.Close()
			tables, err := selectTables(args[1:])
			if err != nil {
				return err
			}

			for _, t := range tables {
				s, err := conv.TableSchema(t)
				if err != nil {
					pterm.Warning.Printfln("%s: %v", t.Name, err)
					continue
				}
				pterm.DefaultSection.Println(fmt.Sprintf("%s <%s> in <%s>", s.Name, s.Tag, s.Entity))
				data := pterm.TableData{{"Field", "Type", "Size", "Required", "Description"}}
				for _, f := range s.Fields {
					size := ""
					switch {
					case f.MaxLength > 0:
						size = strconv.Itoa(f.MaxLength)
					case f.TotalDigits > 0:
						size = strconv.Itoa(f.TotalDigits) + " digits"
					}
					data = append(data, []string{f.Name, f.Type, size, strconv.FormatBool(f.Required), f.Doc})
				}
				if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "HCL config file")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "directory or .zip with the XSD files (default: the input)")
	return cmd
}

func newDDLCmd() *cobra.Command {
	var (
		configPath, schemaPath, format, output string
		includeKeys, dropTables                bool
	)
	cmd := &cobra.Command{
		Use:   "ddl <input> [table...]",
		Short: "Print CREATE TABLE statements without converting data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := config.LoadOptional(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("include-keys") {
				fc.IncludeKeys = includeKeys
			}
			if cmd.Flags().Changed("drop-tables") {
				fc.DropTables = dropTables
			}
			conv, err := openExport(args[0], schemaPath, format, fc)
			if err != nil {
				return err
			}
			defer conv.Close()
			tables, err := selectTables(args[1:])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			for i, t := range tables {
				if i > 0 {
					if _, err := io.WriteString(w, "\n"); err != nil {
						return err
					}
				}
				if err := conv.WriteDefinition(w, t); err != nil {
					return fmt.Errorf("%s: %w", t.Name, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "HCL config file")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "directory or .zip with the XSD files (default: the input)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "SQL dialect: mysql, postgres, sqlite, clickhouse")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&includeKeys, "include-keys", false, "add primary and secondary keys")
	cmd.Flags().BoolVar(&dropTables, "drop-tables", false, "emit DROP TABLE IF EXISTS first")
	return cmd
}
