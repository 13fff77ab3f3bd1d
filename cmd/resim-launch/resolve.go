package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newResolveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve configured names to ReSim IDs without launching",
		Long: `Authenticate and look up the configured project, system, branch and
test suite. Nothing is created. With no project configured, the most
recently created project is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, *configFile)
			if err != nil {
				return err
			}
			defer s.Close()

			orch, err := newOrchestrator(cmd, s)
			if err != nil {
				return err
			}
			defer orch.Close()

			res, err := orch.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project:    %s (%s)\n", res.ProjectName, res.ProjectID)
			if res.SystemID != "" {
				fmt.Fprintf(out, "system:     %s (%s)\n", s.cfg.System, res.SystemID)
			}
			if res.BranchName != "" {
				if res.BranchMissing {
					printStatus(out, "⚠", fmt.Sprintf("branch %s does not exist yet; launch will create it", res.BranchName), color.FgYellow)
				} else {
					fmt.Fprintf(out, "branch:     %s (%s)\n", res.BranchName, res.BranchID)
				}
			}
			if res.TestSuiteID != "" {
				fmt.Fprintf(out, "test suite: %s (%s)\n", s.cfg.TestSuite, res.TestSuiteID)
			}
			return nil
		},
	}
}
