package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit"
	"github.com/patrolkit/patrolkit/internal/output"
)

var (
	playersTeam      string
	playersStaffOnly bool
)

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List everyone currently in the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			players, err := client.Players(cmd.Context())
			if err != nil {
				return err
			}
			if playersTeam != "" {
				players = patrolkit.FilterByTeam(players, playersTeam)
			}
			if playersStaffOnly {
				players = patrolkit.StaffOnline(players)
			}
			return render(cmd, players, func() string { return output.PlayersTable(players) })
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List players waiting to join",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			ids, err := client.QueuedPlayers(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, ids, func() string { return output.QueueTable(ids) })
		})
	},
}

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "List banned players",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			bans, err := client.Bans(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, bans, func() string { return output.BansTable(bans) })
		})
	},
}

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Show the co-owner/admin/moderator roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			roster, err := client.Staff(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, roster, func() string { return output.StaffTable(roster) })
		})
	},
}

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "List spawned vehicles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			vehicles, err := client.Vehicles(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, vehicles, func() string { return output.VehiclesTable(vehicles) })
		})
	},
}

func init() {
	playersCmd.Flags().StringVar(&playersTeam, "team", "", "only show one team")
	playersCmd.Flags().BoolVar(&playersStaffOnly, "staff", false, "only show staff members")
	rootCmd.AddCommand(playersCmd, queueCmd, bansCmd, staffCmd, vehiclesCmd)
}
