package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/darianmavgo/garsql/config"
	"github.com/darianmavgo/garsql/converters"
	"github.com/darianmavgo/garsql/converters/common"
)

// conversionFlags are the settings shared by commands that read an export.
type conversionFlags struct {
	configPath      string
	format          string
	layout          string
	schema          string
	tables          string
	regions         string
	batchSize       int
	encoding        string
	charset         string
	workers         int
	includeKeys     bool
	dropTables      bool
	skipData        bool
	skipDefinition  bool
	noBanner        bool
	noManifest      bool
	continueOnError bool
	scanTimeout     string
	verbose         bool
}

func (f *conversionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "HCL config file (default "+config.DefaultPath+" when present)")
	fl.StringVarP(&f.format, "format", "f", "", "output format: mysql, postgres, sqlite, clickhouse, csv, tsv, html, xlsx")
	fl.StringVarP(&f.layout, "layout", "l", "", "output layout: direct, per_region, per_table, region_tree")
	fl.StringVar(&f.schema, "schema", "", "directory or .zip with the XSD files (default: the input)")
	fl.StringVarP(&f.tables, "tables", "t", "", "comma-separated tables to convert (default: all)")
	fl.StringVarP(&f.regions, "regions", "r", "", "comma-separated region codes (default: all found)")
	fl.IntVarP(&f.batchSize, "batch-size", "b", 0, "rows per INSERT statement")
	fl.StringVar(&f.encoding, "encoding", "", "encoding named in SQL dump headers")
	fl.StringVar(&f.charset, "charset", "", "decode XML input from this charset, ignoring its declaration")
	fl.IntVarP(&f.workers, "workers", "j", 0, "output files written concurrently")
	fl.BoolVar(&f.includeKeys, "include-keys", false, "add primary and secondary keys to CREATE TABLE")
	fl.BoolVar(&f.dropTables, "drop-tables", false, "emit DROP TABLE IF EXISTS before CREATE TABLE")
	fl.BoolVar(&f.skipData, "skip-data", false, "write table definitions only")
	fl.BoolVar(&f.skipDefinition, "skip-definition", false, "write rows only")
	fl.BoolVar(&f.noBanner, "no-banner", false, "omit the generated-by banner")
	fl.BoolVar(&f.noManifest, "no-manifest", false, "do not write "+converters.ManifestName)
	fl.BoolVar(&f.continueOnError, "continue-on-error", false, "keep going when a table has a bad schema or data file")
	fl.StringVar(&f.scanTimeout, "scan-timeout", "", "abort a table that produces no rows for this long (e.g. 2m)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log progress")
}

// resolve loads the config file and applies the flags given explicitly on
// the command line over it.
func (f *conversionFlags) resolve(cmd *cobra.Command) (*common.ConversionConfig, *config.Config, error) {
	fc, err := config.LoadOptional(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	cc := fc.Conversion()

	changed := cmd.Flags().Changed
	if changed("format") {
		cc.Format = f.format
	}
	if changed("layout") {
		cc.Layout = f.layout
	}
	if changed("schema") {
		cc.SchemaPath = f.schema
	}
	if changed("tables") {
		cc.Tables = common.SplitList(f.tables)
	}
	if changed("regions") {
		cc.Regions = common.SplitList(f.regions)
	}
	if changed("batch-size") {
		cc.BatchSize = f.batchSize
	}
	if changed("encoding") {
		cc.Encoding = f.encoding
	}
	if changed("charset") {
		cc.Charset = f.charset
	}
	if changed("workers") {
		cc.Workers = f.workers
	}
	if changed("include-keys") {
		cc.IncludeKeys = f.includeKeys
	}
	if changed("drop-tables") {
		cc.DropTables = f.dropTables
	}
	if changed("skip-data") {
		cc.SkipData = f.skipData
	}
	if changed("skip-definition") {
		cc.SkipDefinition = f.skipDefinition
	}
	if changed("no-banner") {
		cc.NoBanner = f.noBanner
	}
	if changed("no-manifest") {
		cc.NoManifest = f.noManifest
	}
	if changed("continue-on-error") {
		cc.ContinueOnError = f.continueOnError
	}
	if changed("scan-timeout") {
		cc.ScanTimeout = f.scanTimeout
	}
	cc.Verbose = f.verbose
	if cc.SkipData && cc.SkipDefinition {
		return nil, nil, &common.ConfigurationError{Setting: "skip_definition", Value: "true", Msg: "nothing left to write with skip_data"}
	}
	return cc, fc, nil
}

func newConvertCmd() *cobra.Command {
	var f conversionFlags
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert an export directory or archive",
		Long: `Convert reads the XSD schemas and XML data of a GAR export and writes
them in the chosen format. <input> is an unpacked export directory or the
published .zip archive. <output> is a directory; with the direct layout it may
also name the dump file itself.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, fc, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			cc.InputPath = args[0]
			cc.OutputPath = args[1]
			if cc.SchemaPath == "" {
				cc.SchemaPath = cc.InputPath
			}

			conv, err := converters.New(cc, converters.WithCatalog(fc.Catalog()))
			if err != nil {
				return err
			}
			defer conv.Close()

			ctx, stop := converters.InterruptContext(context.Background())
			defer stop()

			var spinner *pterm.SpinnerPrinter
			if !cc.Verbose {
				spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Converting %s to %s", cc.InputPath, conv.Format().Name))
			}
			start := time.Now()
			report, err := conv.Run(ctx)
			if spinner != nil {
				if err != nil {
					spinner.Fail(err)
				} else {
					spinner.Success(fmt.Sprintf("Converted %s rows in %v", humanize.Comma(report.Rows()), time.Since(start).Round(time.Millisecond)))
				}
			}
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return err
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed", len(failed), len(report.Units))
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func printReport(r *converters.Report) {
	data := pterm.TableData{{"File", "Rows", "Size", "Time", "Status"}}
	for _, u := range r.Units {
		if u.Unit.Name == "" {
			continue
		}
		status := pterm.FgGreen.Sprint("ok")
		if u.Err != nil {
			status = pterm.FgRed.Sprint(u.Err.Error())
		}
		data = append(data, []string{
			u.Unit.Name,
			humanize.Comma(u.Rows),
			humanize.Bytes(uint64(u.Bytes)),
			u.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	if len(data) > 1 {
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	if r.Manifest != "" {
		pterm.Info.Printfln("Manifest written to %s", r.Manifest)
	}
}
