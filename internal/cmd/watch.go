package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrolkit/patrolkit"
	"github.com/patrolkit/patrolkit/events"
)

var (
	watchKinds    []string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the server and print changes as they happen",
	Long: `Watch polls the server on an interval and prints joins, leaves,
kills, commands, vehicle spawns, and moderator calls as they happen.
Interrupt with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		kindNames := cfg.Watch.Kinds
		if len(watchKinds) > 0 {
			kindNames = watchKinds
		}
		kinds, err := parseKinds(kindNames)
		if err != nil {
			return err
		}

		interval := cfg.Watch.PollInterval
		if watchInterval > 0 {
			interval = watchInterval
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close() // nolint:errcheck // best-effort cleanup

		engine, err := events.NewEngine(events.Config{
			Source:         client,
			Kinds:          kinds,
			PollInterval:   interval,
			IncludeInitial: cfg.Watch.IncludeInitial,
			RetryOnError:   cfg.Watch.RetryOnError,
			RetryInterval:  cfg.Watch.RetryInterval,
			OnError: func(err error) {
				logger.Warn("poll failed", zap.Error(err))
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}
		engine.On(printHandlers(cmd))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := engine.Start(ctx); err != nil {
			return fmt.Errorf("start watch: %w", err)
		}
		defer engine.Stop()

		logger.Info("watching", zap.Duration("interval", interval))
		<-ctx.Done()
		return nil
	},
}

// parseKinds maps kind names to event kinds. Empty means everything.
func parseKinds(names []string) ([]events.Kind, error) {
	valid := map[string]events.Kind{
		"players":  events.KindPlayers,
		"queue":    events.KindQueue,
		"vehicles": events.KindVehicles,
		"commands": events.KindCommands,
		"kills":    events.KindKills,
		"joins":    events.KindJoins,
		"modcalls": events.KindModCalls,
	}

	kinds := make([]events.Kind, 0, len(names))
	for _, name := range names {
		kind, ok := valid[name]
		if !ok {
			return nil, fmt.Errorf("unknown watch kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printHandlers(cmd *cobra.Command) events.Handlers {
	out := cmd.OutOrStdout()
	stamp := func() string { return time.Now().Format("15:04:05") }

	return events.Handlers{
		PlayerJoined: func(p patrolkit.Player) {
			fmt.Fprintf(out, "%s + %s joined (%s)\n", stamp(), p.Name(), p.Team)
		},
		PlayerLeft: func(p patrolkit.Player) {
			fmt.Fprintf(out, "%s - %s left\n", stamp(), p.Name())
		},
		QueueJoined: func(id int64) {
			fmt.Fprintf(out, "%s + %d entered the queue\n", stamp(), id)
		},
		QueueLeft: func(id int64) {
			fmt.Fprintf(out, "%s - %d left the queue\n", stamp(), id)
		},
		VehicleSpawned: func(v patrolkit.Vehicle) {
			fmt.Fprintf(out, "%s + %s spawned a %s\n", stamp(), v.Owner, v.Name)
		},
		VehicleDespawned: func(v patrolkit.Vehicle) {
			fmt.Fprintf(out, "%s - %s despawned their %s\n", stamp(), v.Owner, v.Name)
		},
		Command: func(e patrolkit.CommandEntry) {
			fmt.Fprintf(out, "%s ! %s ran %q\n", stamp(), e.Player, e.Command)
		},
		Kill: func(e patrolkit.KillEntry) {
			fmt.Fprintf(out, "%s x %s killed %s\n", stamp(), e.Killer, e.Killed)
		},
		Join: func(e patrolkit.JoinEntry) {
			action := "left"
			if e.Join {
				action = "joined"
			}
			fmt.Fprintf(out, "%s . log: %s %s\n", stamp(), e.Player, action)
		},
		ModCall: func(e patrolkit.ModCallEntry) {
			fmt.Fprintf(out, "%s ? %s called for a moderator\n", stamp(), e.Caller)
		},
	}
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchKinds, "kinds", nil,
		"kinds to watch: players,queue,vehicles,commands,kills,joins,modcalls (default all)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (overrides config)")
	rootCmd.AddCommand(watchCmd)
}
