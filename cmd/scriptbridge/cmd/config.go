package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)

		return err
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName + "." + config.FileType
		if len(args) == 1 {
			path = args[0]
		}

		written, err := config.WriteDefault(afero.NewOsFs(), path)
		if err != nil {
			return err
		}
		if !written {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(path+" already exists"))

			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("created")+" "+path)

		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSchemaCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
