package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/darianmavgo/garsql/converters"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <output-dir>",
		Short: "Check converted files against their manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mismatches, err := converters.VerifyManifest(args[0])
			if err != nil {
				return err
			}
			if len(mismatches) == 0 {
				pterm.Success.Println("All files match the manifest")
				return nil
			}
			data := pterm.TableData{{"File", "Expected", "Actual", "Problem"}}
			for _, m := range mismatches {
				data = append(data, []string{m.Name, m.Want, m.Got, m.Reason})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			return fmt.Errorf("%d files do not match the manifest", len(mismatches))
		},
	}
}
