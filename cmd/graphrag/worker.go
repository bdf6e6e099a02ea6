package graphrag

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/config"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a stateless map worker",
	Long: `Start a map worker that scores communities against user queries and
generates community reports. The worker serves the HTTP endpoints and
subscribes to the message bus for fan-out requests.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("host", "", "host to bind the worker to")
	workerCmd.Flags().Int("port", 0, "port to bind the worker to")
	workerCmd.Flags().String("group", "", "bus queue group shared by workers")

	viper.BindPFlag("server.host", workerCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", workerCmd.Flags().Lookup("port"))
	viper.BindPFlag("bus.group", workerCmd.Flags().Lookup("group"))
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.Enabled, cfg.Telemetry.ParquetPath)

	client, err := graphrag.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize graphrag: %w", err)
	}
	defer client.Close()

	w := client.Worker()
	if w == nil {
		return fmt.Errorf("worker requires a bus and a rendezvous store")
	}

	mapSub, err := w.SubscribeMapRequests(client.Bus(), cfg.Bus.MapTopic, cfg.Bus.Group)
	if err != nil {
		return fmt.Errorf("failed to subscribe to map requests: %w", err)
	}
	defer mapSub.Unsubscribe()

	reportSub, err := w.SubscribeReportRequests(client.Bus(), cfg.Bus.ReportTopic, cfg.Bus.Group)
	if err != nil {
		return fmt.Errorf("failed to subscribe to report requests: %w", err)
	}
	defer reportSub.Unsubscribe()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting worker", "addr", addr, "map_topic", cfg.Bus.MapTopic, "report_topic", cfg.Bus.ReportTopic)
	return w.Router(cfg.Server.Mode).Run(addr)
}
