package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/collector"
	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/export"
	"github.com/earshot-dev/earshot/internal/storage"
)

var (
	exportEndpoint string
	exportInsecure bool
	exportService  string
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run as OpenTelemetry spans",
	Long: `Export a recorded run to an OTLP collector.

Each process becomes one span, parented on the process that spawned
it, so the build appears as a tree of tool invocations. Flags override
the otel section of the config file.

Example:
  earshot export --endpoint localhost:4318 --insecure run_a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: exportRun,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportEndpoint, "endpoint", "", "OTLP/HTTP receiver host:port (default localhost:4318)")
	exportCmd.Flags().BoolVar(&exportInsecure, "insecure", false, "export over plain HTTP")
	exportCmd.Flags().StringVar(&exportService, "service", "", "service.name spans are exported under")
}

func exportRun(cmd *cobra.Command, args []string) error {
	store, err := storage.OpenRunStore(runsBaseDir(), args[0])
	if err != nil {
		return err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return fmt.Errorf("loading run metadata: %w", err)
	}

	events, err := collector.OpenStore(store.EventsDBPath())
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	recorded, err := events.Events()
	events.Close()
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	if len(recorded) == 0 {
		return fmt.Errorf("run %s has no events", store.RunID())
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	opts := export.Options{
		Endpoint: exportEndpoint,
		Insecure: exportInsecure || cfg.Otel.Insecure,
		Service:  exportService,
	}
	if opts.Endpoint == "" {
		opts.Endpoint = cfg.Otel.Endpoint
	}
	if opts.Service == "" {
		opts.Service = cfg.Otel.Service
	}

	count, err := export.Export(cmd.Context(), export.Batch{
		RunID:     store.RunID(),
		Events:    recorded,
		StoppedAt: meta.StoppedAt,
	}, opts)
	if err != nil {
		return fmt.Errorf("exporting run: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	fmt.Printf("exported %d spans to %s\n", count, endpoint)
	return nil
}
