package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var shimsCmd = &cobra.Command{
	Use:   "shims",
	Short: "Show the intercepted command set",
	Long: `Show the command names a run would intercept.

These are the names materialized into the shim farm and put first on
the build's PATH. The set comes from the commands list of the config
file, or the built-in compiler set.`,
	RunE: showShims,
}

func init() {
	rootCmd.AddCommand(shimsCmd)
	shimsCmd.Flags().StringVar(&configFlag, "config", "", "config file (default ~/.earshot/config.yaml)")
}

func showShims(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(cfg.Commands)
	}
	for _, name := range cfg.Commands {
		fmt.Println(name)
	}
	return nil
}
