package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long:  `Show all recorded runs, most recent first.`,
	RunE:  listRecordedRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func listRecordedRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.ListRuns(runsBaseDir())
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tMODE\tSTATUS\tSTARTED\tCOMMAND")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.Meta.Mode,
			runStatus(r.Meta),
			formatTimeAgo(r.Meta.StartedAt),
			truncate(commandString(r.Meta.Command), 60),
		)
	}
	return w.Flush()
}
