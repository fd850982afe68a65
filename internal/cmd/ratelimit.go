package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patrolkit/patrolkit"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the last known rate limit window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(client *patrolkit.Client) error {
			// A cheap read primes the tracker from response headers.
			if _, err := client.Status(cmd.Context(), patrolkit.WithoutCache()); err != nil {
				return err
			}

			window, ok := client.RateLimit()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no rate limit window recorded")
				return nil
			}
			return render(cmd, window, func() string {
				return fmt.Sprintf("bucket=%s limit=%d remaining=%d reset=%s",
					window.Bucket, window.Limit, window.Remaining, window.Reset.Format("15:04:05"))
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(rateLimitCmd)
}
