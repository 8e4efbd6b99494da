// Command garsql converts GAR address registry exports (XSD + XML) into SQL
// dumps, CSV/TSV, HTML tables or xlsx workbooks.
package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/darianmavgo/garsql/converters"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "garsql",
		Short:         "Convert GAR registry exports to SQL dumps and tables",
		Version:       converters.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newConvertCmd(),
		newSchemaCmd(),
		newDDLCmd(),
		newFormatsCmd(),
		newVerifyCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
