package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit/internal/output"
)

// render prints value per the global --output flag: tableFn for tables,
// the raw value as JSON otherwise.
func render(cmd *cobra.Command, value any, tableFn func() string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		rendered, err := output.RenderJSON(value)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), tableFn())
	return nil
}
