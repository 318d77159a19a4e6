// Package cmd provides the CLI commands for the scriptbridge application.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scriptbridge",
	Short: "Script plugin bridge and host runner",
	Long: `Run script plugins through the scriptbridge ABI, either natively with an
in-memory host or as a compiled WASI guest on wazero.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default searches for scriptbridge.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "human", "log format: human or json")
	flags.String("home", config.DefaultHome, "interpreter home")
	flags.String("module", config.DefaultModule, "plugin module name")
	flags.String("entry-point", config.DefaultEntryPoint, "function called on every invoke")
	flags.String("mount", ".", "host directory mounted at the interpreter home")
}

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"home":        "interpreter.home",
	"module":      "interpreter.module",
	"entry-point": "interpreter.entry_point",
	"mount":       "host.mount",
}

// loadConfig reads the configuration and initializes the process logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	opts := []config.Option{}
	if cfgFile != "" {
		opts = append(opts, config.WithFile(cfgFile))
	}
	for name, key := range flagKeys {
		opts = append(opts, config.WithFlag(key, cmd.Flags().Lookup(name)))
	}

	loaded, err := config.Load(opts...)
	if err != nil {
		return err
	}
	cfg = loaded

	logging.InitLoggerTo(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level), cfg.Log.Format != "json")

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
