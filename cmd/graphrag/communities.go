package graphrag

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/config"
)

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Manage graph communities",
}

var communitiesBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Detect communities over the current graph",
	Long: `Run hierarchical clustering over the stable graph view and store the
resulting community records, replacing any previous partition.`,
	RunE: runCommunitiesBuild,
}

var communitiesReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Generate reports for stored communities in-process",
	RunE:  runCommunitiesReports,
}

var communitiesDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch report requests to workers over the bus",
	RunE:  runCommunitiesDispatch,
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Recompute node embeddings from titles and descriptions",
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(communitiesCmd)
	communitiesCmd.AddCommand(communitiesBuildCmd)
	communitiesCmd.AddCommand(communitiesReportsCmd)
	communitiesCmd.AddCommand(communitiesDispatchCmd)
	rootCmd.AddCommand(embedCmd)
}

func withClient(run func(ctx context.Context, client *graphrag.Client) error) error {
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

	return run(context.Background(), client)
}

func runCommunitiesBuild(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *graphrag.Client) error {
		communities, err := client.BuildCommunities(ctx)
		if err != nil {
			return fmt.Errorf("community build failed: %w", err)
		}
		fmt.Printf("communities: %d\n", len(communities))
		for _, community := range communities {
			fmt.Printf("  %s (%d members)\n", community.CommunityUID, len(community.CommunityNodes))
		}
		return nil
	})
}

func runCommunitiesReports(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *graphrag.Client) error {
		if err := client.GenerateReports(ctx); err != nil {
			return fmt.Errorf("report generation failed: %w", err)
		}
		fmt.Println("reports generated")
		return nil
	})
}

func runEmbed(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *graphrag.Client) error {
		updated, err := client.RefreshNodeEmbeddings(ctx)
		if err != nil {
			return fmt.Errorf("embedding refresh failed: %w", err)
		}
		fmt.Printf("updated: %d\n", updated)
		return nil
	})
}

func runCommunitiesDispatch(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *graphrag.Client) error {
		dispatched, err := client.DispatchReports(ctx)
		if err != nil {
			return fmt.Errorf("report dispatch failed: %w", err)
		}
		fmt.Printf("dispatched: %d\n", dispatched)
		return nil
	})
}
