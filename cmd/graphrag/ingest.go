package graphrag

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/config"
)

var ingestDocumentID string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest an extractor tuple stream",
	Long: `Ingest a delimited extractor tuple stream into the knowledge graph.
Reads from the given file, or from stdin when no file is provided.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestDocumentID, "document-id", "", "identifier of the source document")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.Enabled, cfg.Telemetry.ParquetPath)

	var raw []byte
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}

	client, err := graphrag.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize graphrag: %w", err)
	}
	defer client.Close()

	result, err := client.Ingest(context.Background(), string(raw), ingestDocumentID)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("entities: %d\nrelationships: %d\nskipped: %d\n",
		result.Entities, result.Relationships, result.Skipped)
	return nil
}
