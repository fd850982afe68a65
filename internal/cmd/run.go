package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit"
)

var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Execute a remote server command",
	Long: `Execute a remote server command, e.g.:

  patrolctl run :h "drive safe out there"
  patrolctl run :kick Alice`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		if !strings.HasPrefix(command, ":") {
			return fmt.Errorf("server commands start with ':', got %q", command)
		}

		return withClient(func(client *patrolkit.Client) error {
			if err := client.RunCommand(cmd.Context(), command); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "command sent")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
