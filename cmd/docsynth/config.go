package main

import (
	"fmt"

	"github.com/Lllllllleong/docsynth/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd edits the profile itself, so it must work while the profile is
// still invalid and does not build a backend client.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the docsynth profile",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective profile, environment overrides included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one profile key and save the file",
	Example: `  docsynth config set backend_url https://synth.example.com/api
  docsynth config set user_id 42
  docsynth config set http_timeout 2m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFile(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", args[0], args[1], path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
