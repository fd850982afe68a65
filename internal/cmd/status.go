package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit"
	"github.com/patrolkit/patrolkit/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server metadata snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, status, func() string { return output.StatusTable(status) })
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
