package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resim-ai/launch/internal/config"
	"github.com/resim-ai/launch/internal/errs"
)

func newConfigCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config [key]",
		Short: "Show the effective configuration",
		Long: `Display the configuration resim-launch would run with, after merging
flags, environment, the project file and defaults. Credentials are masked.

With one argument (key), displays the value for that key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{ConfigFile: *configFile, Flags: cmd.Flags()})
			if err != nil {
				return errs.Wrap(errs.CodeConfiguration, "load config", err)
			}

			out := cmd.OutOrStdout()
			settings := cfg.Settings()
			if len(args) == 1 {
				for _, s := range settings {
					if s.Key == args[0] {
						fmt.Fprintln(out, s.Value)
						return nil
					}
				}
				return errs.Config("unknown config key: %s", args[0])
			}

			path := *configFile
			if path == "" {
				path = config.GetProjectConfigPath()
			}
			if path == "" {
				path = "(none)"
			}
			fmt.Fprintf(out, "# config file: %s\n", path)
			fmt.Fprintf(out, "# credentials: %s\n", config.GetCredentialSource(cfg))
			for _, s := range settings {
				fmt.Fprintf(out, "%s: %s\n", s.Key, s.Value)
			}
			return nil
		},
	}
}
