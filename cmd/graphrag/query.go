package graphrag

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	graphrag "github.com/soundprediction/graphrag"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a global query over community reports",
	Long: `Fan the question out to map workers over the bus, collect scored
partial answers from the rendezvous store, and reduce them into a final
answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *graphrag.Client) error {
		answer, err := client.Answer(ctx, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Println(answer)
		return nil
	})
}
