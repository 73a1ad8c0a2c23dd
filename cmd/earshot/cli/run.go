package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/run"
	"github.com/earshot-dev/earshot/internal/ui"
)

var (
	passiveFlag bool
	ptyFlag     bool
	chdirFlag   string
	configFlag  string
	shimFlag    string
	relayFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Run a build and record every command it executes",
	Long: `Run a build command with execution tracing.

Earshot materializes a directory of interception shims, puts it first
on the build's PATH, and starts a collector. Every intercepted tool
invocation is rerouted through a relay that reports it before chaining
to the real executable. The build's stdio, exit code, and signals pass
through untouched.

Passive mode skips the environment rewriting and watches the process
tree from the kernel side instead. It catches statically resolved and
absolute-path executions the shims cannot see, but needs elevated
privileges.

Examples:
  # Trace a make build
  earshot run -- make -j8

  # Trace a configure script that resolves compilers itself
  sudo earshot run --passive -- ./configure

  # Record the terminal session as well
  earshot run --pty -- make test

  # Build in another directory
  earshot run --chdir ./pkg -- make`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().BoolVar(&passiveFlag, "passive", false, "watch the process tree from the kernel instead of shimming PATH")
	runCmd.Flags().BoolVar(&ptyFlag, "pty", false, "run the build under a pseudo-terminal and record the session")
	runCmd.Flags().StringVar(&chdirFlag, "chdir", "", "working directory for the build")
	runCmd.Flags().StringVar(&configFlag, "config", "", "config file (default ~/.earshot/config.yaml)")
	runCmd.Flags().StringVar(&shimFlag, "shim", "", "path to the earshot-shim binary")
	runCmd.Flags().StringVar(&relayFlag, "relay", "", "path to the earshot-relay binary")
	_ = runCmd.Flags().MarkHidden("shim")
	_ = runCmd.Flags().MarkHidden("relay")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	summary, err := run.Run(cmd.Context(), args, run.Options{
		Config:    cfg,
		BaseDir:   baseDirFlag,
		Workdir:   chdirFlag,
		Passive:   passiveFlag,
		PTY:       ptyFlag || cfg.PTY,
		Verbose:   verbose,
		ShimPath:  shimFlag,
		RelayPath: relayFlag,
	})
	if err != nil {
		return err
	}

	tag := ui.OKTag()
	if summary.ExitCode != 0 {
		tag = ui.FailTag()
	}
	ui.Infof("%s %s: exit %d, %d events, %s",
		tag, summary.RunID, summary.ExitCode, summary.Events,
		summary.Duration.Round(time.Millisecond))

	buildExitCode = summary.ExitCode
	return nil
}

// loadConfig reads the configuration the run starts from: an explicit
// --config file, or the user's default layered with the environment.
func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadDefault()
}
