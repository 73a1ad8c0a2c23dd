package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/collector"
	"github.com/earshot-dev/earshot/internal/report"
	"github.com/earshot-dev/earshot/internal/storage"
)

var eventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "List the commands a run recorded",
	Long: `List every execution event a run recorded, in order.

Example:
  earshot events run_a1b2c3d4e5f6
  earshot events --json run_a1b2c3d4e5f6 | jq .`,
	Args: cobra.ExactArgs(1),
	RunE: listEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func listEvents(cmd *cobra.Command, args []string) error {
	store, err := storage.OpenRunStore(runsBaseDir(), args[0])
	if err != nil {
		return err
	}

	events, err := collector.OpenStore(store.EventsDBPath())
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	defer events.Close()

	recorded, err := events.Events()
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		for _, ev := range recorded {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	if len(recorded) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tPID\tPPID\tCOMMAND")
	for _, ev := range recorded {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			ev.Timestamp.Format("15:04:05.000"),
			ev.Kind,
			ev.PID,
			ev.PPID,
			truncate(eventDetail(ev), 80),
		)
	}
	return w.Flush()
}

// eventDetail renders the interesting part of an event: the command
// line for an exec, the exit code for an exit.
func eventDetail(ev report.Event) string {
	if ev.Kind == report.KindExit {
		if ev.ExitCode != nil {
			return fmt.Sprintf("exit %d", *ev.ExitCode)
		}
		return "exit"
	}
	return commandString(ev.Args)
}
