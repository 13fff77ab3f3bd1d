package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/resim-ai/launch/internal/ci"
	"github.com/resim-ai/launch/internal/config"
	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/git"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/internal/orchestrator"
)

// newRootCmd builds the command tree. The root command launches a batch.
func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "resim-launch",
		Short: "Register a build and launch a ReSim batch from CI",
		Long: `resim-launch registers a container image as a ReSim build on the current
branch and launches a batch of experiences against it.

Inputs are read from GitHub Actions (INPUT_<NAME>), RESIM_* variables,
a .resim-launch.yaml project file and the flags below, in that order of
increasing precedence.

Exactly one of --test-suite, --experiences or --experience-tags selects
what the batch runs. --build-id reuses an existing build instead of
registering --image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (default: search for "+config.ProjectFileName+")")
	flags.String("api-endpoint", "", "ReSim API endpoint")
	flags.String("project", "", "Project name")
	flags.String("system", "", "System name the build targets")
	flags.String("image", "", "Container image to register as a build")
	flags.String("build-id", "", "Existing build ID to launch instead of registering --image")
	flags.String("test-suite", "", "Test suite to run")
	flags.String("experiences", "", "Comma-separated experience names")
	flags.String("experience-tags", "", "Comma-separated experience tag names")
	flags.String("pool-labels", "", "Comma-separated pool labels")
	flags.String("allowable-failure-percent", "", "Percentage of failed jobs tolerated (0-100)")
	flags.String("metrics-build-id", "", "Metrics build ID (ignored for test suites)")
	flags.String("parameters", "", "YAML or JSON mapping of batch parameters")
	flags.Bool("comment-on-pr", false, "Comment the results link on the pull request")
	flags.Bool("bypass-cache", false, "Ignore any cached token and request a new one")
	flags.Bool("debug-logging", false, "Enable debug logging")
	flags.String("cache-backend", "", "Token cache backend: sqlite, s3 or none")
	flags.String("cache-path", "", "SQLite token cache file")
	flags.String("log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(newResolveCmd(&configFile))
	rootCmd.AddCommand(newConfigCmd(&configFile))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// run executes the command tree and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s %s\n", color.New(color.FgRed).Sprint("✗"), describeError(err))
		return 1
	}
	return 0
}

func describeError(err error) string {
	code := errs.CodeOf(err)
	if code == errs.CodeInternal {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", code, err)
}

// session is what every subcommand needs before doing work.
type session struct {
	cfg      *config.Config
	event    *ci.Event
	logger   *slog.Logger
	closeLog func() error
}

func (s *session) Close() error {
	return s.closeLog()
}

func newSession(cmd *cobra.Command, configFile string) (*session, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfiguration, "load config", err)
	}

	logger, closeLog, err := logging.New(cmd.ErrOrStderr(), logging.Options{Debug: cfg.DebugLogging, File: cfg.LogFile})
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "create logger", err)
	}

	var head git.HeadInfo
	if repo, err := git.Open("."); err == nil {
		head = repo
	} else {
		logger.Debug("no git checkout", "error", err)
	}

	ev, err := ci.Load(os.Getenv, head)
	if err != nil {
		closeLog()
		return nil, errs.Wrap(errs.CodeConfiguration, "load ci context", err)
	}

	return &session{cfg: cfg, event: ev, logger: logger, closeLog: closeLog}, nil
}

func newOrchestrator(cmd *cobra.Command, s *session) (*orchestrator.Orchestrator, error) {
	out := cmd.OutOrStdout()
	return orchestrator.New(
		orchestrator.RequiredConfig{Config: s.cfg, Event: s.event},
		orchestrator.WithLogger(s.logger),
		orchestrator.WithProgress(func(step, detail string) {
			printStatus(out, "✓", fmt.Sprintf("%s: %s", step, detail), color.FgGreen)
		}),
	)
}

func runLaunch(cmd *cobra.Command, configFile string) error {
	s, err := newSession(cmd, configFile)
	if err != nil {
		return err
	}
	defer s.Close()

	orch, err := newOrchestrator(cmd, s)
	if err != nil {
		return err
	}
	defer orch.Close()

	result, err := orch.Run(cmd.Context())
	if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), result.Terminal())
	}
	return err
}

func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
