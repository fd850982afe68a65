package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit"
	"github.com/patrolkit/patrolkit/internal/output"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Fetch server log feeds",
}

var joinLogsCmd = &cobra.Command{
	Use:   "joins",
	Short: "Show the join/leave log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			entries, err := client.JoinLogs(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, entries, func() string { return output.JoinLogTable(entries) })
		})
	},
}

var killLogsCmd = &cobra.Command{
	Use:   "kills",
	Short: "Show the kill log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			entries, err := client.KillLogs(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, entries, func() string { return output.KillLogTable(entries) })
		})
	},
}

var commandLogsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Show the executed-command log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			entries, err := client.CommandLogs(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, entries, func() string { return output.CommandLogTable(entries) })
		})
	},
}

var modCallsCmd = &cobra.Command{
	Use:   "modcalls",
	Short: "Show the moderator-call log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			entries, err := client.ModCalls(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, entries, func() string { return output.ModCallTable(entries) })
		})
	},
}

func init() {
	logsCmd.AddCommand(joinLogsCmd, killLogsCmd, commandLogsCmd, modCallsCmd)
	rootCmd.AddCommand(logsCmd)
}
