package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/storage"
	"github.com/earshot-dev/earshot/internal/ttylog"
)

var (
	ttyReplay bool
	ttySpeed  float64
)

var ttyCmd = &cobra.Command{
	Use:   "tty <run-id>",
	Short: "Inspect or replay a run's terminal capture",
	Long: `Inspect the terminal session a --pty run recorded.

Without flags, prints a summary of the capture. With --replay, the
session's output is written back to the terminal with its original
timing; --speed scales it.

Example:
  earshot tty run_a1b2c3d4e5f6
  earshot tty --replay --speed 2 run_a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: showTTY,
}

func init() {
	rootCmd.AddCommand(ttyCmd)
	ttyCmd.Flags().BoolVar(&ttyReplay, "replay", false, "replay the captured session")
	ttyCmd.Flags().Float64Var(&ttySpeed, "speed", 1.0, "replay speed multiplier")
}

func showTTY(cmd *cobra.Command, args []string) error {
	store, err := storage.OpenRunStore(runsBaseDir(), args[0])
	if err != nil {
		return err
	}
	capture, err := ttylog.Load(store.TTYLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("run %s has no terminal capture (was it started with --pty?)", args[0])
		}
		return fmt.Errorf("loading terminal capture: %w", err)
	}

	if ttyReplay {
		return capture.Replay(os.Stdout, ttySpeed)
	}

	fmt.Printf("Run:      %s\n", capture.Meta.RunID)
	fmt.Printf("Command:  %s\n", commandString(capture.Meta.Command))
	fmt.Printf("Started:  %s\n", capture.Meta.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", capture.Duration().Round(time.Millisecond))
	fmt.Printf("Events:   %d\n", len(capture.Events))
	if capture.Meta.InitialSize.Width > 0 {
		fmt.Printf("Size:     %dx%d\n", capture.Meta.InitialSize.Width, capture.Meta.InitialSize.Height)
	}
	return nil
}
