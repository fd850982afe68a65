// Package cmd implements the patrolctl command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrolkit/patrolkit/internal/config"
	"github.com/patrolkit/patrolkit/internal/observability"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
	serverKeyArg string

	logger *zap.Logger

	// Version info set by main package.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "patrolctl",
	Short: "Manage an Emergency Response: Liberty County server",
	Long: `patrolctl talks to the server management API: inspect the server,
its players and logs, run remote commands, and watch for changes.

Credentials come from the config file, the PATROLKIT_SERVER_KEY environment
variable, or the --server-key flag.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format: table|json")
	rootCmd.PersistentFlags().StringVar(&serverKeyArg, "server-key", "",
		"server API key (overrides config and environment)")
}

func initLogger() {
	logger = observability.NewCLILogger(verbose)
}

// loadConfig merges the config layers and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.NewViper(cfgFile))
	if err != nil {
		return nil, err
	}
	if serverKeyArg != "" {
		cfg.ServerKey = serverKeyArg
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
