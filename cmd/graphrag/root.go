package graphrag

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/graphrag/pkg/telemetry"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "graphrag",
	Short: "Graph-based retrieval augmented generation",
	Long: `graphrag ingests extractor tuple streams into a knowledge graph,
detects hierarchical communities, summarizes them with a language model,
and answers global queries with a distributed map-reduce over community
reports.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.graphrag.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("llm.api_key", "OPENAI_API_KEY")
	viper.BindEnv("store.uri", "NEO4J_URI")
	viper.BindEnv("store.username", "NEO4J_USER")
	viper.BindEnv("store.password", "NEO4J_PASSWORD")
	viper.BindEnv("bus.url", "NATS_URL")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and cwd with name ".graphrag".
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".graphrag")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger builds the process logger from the loaded configuration. When
// telemetry is enabled, log records are also persisted as parquet files.
func setupLogger(level, format string, telemetryEnabled bool, parquetPath string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	if telemetryEnabled && parquetPath != "" {
		ph, err := telemetry.NewParquetHandler(handler, parquetPath)
		if err != nil {
			slog.New(handler).Warn("failed to enable parquet telemetry", "error", err)
		} else {
			handler = ph
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
