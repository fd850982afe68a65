package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/patrolkit/patrolkit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.ServerKey != "" {
			cfg.ServerKey = redact(cfg.ServerKey)
		}
		if cfg.GlobalKey != "" {
			cfg.GlobalKey = redact(cfg.GlobalKey)
		}

		encoded, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return fmt.Errorf("cannot determine config path; pass --config")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

const starterConfig = `# patrolctl configuration
server_key: ""
# global_key: ""

timeout: 15s
max_retries: 3

cache:
  enabled: true
  ttl: 30s
  stale_if_error: true
  # redis_url: redis://localhost:6379/0

queue:
  enabled: false
  workers: 1
  interval: 0s

watch:
  poll_interval: 5s
  include_initial: true
  retry_on_error: true
  retry_interval: 10s

logging:
  level: info
  format: console
`

// redact keeps just enough of a credential to recognize it.
func redact(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
