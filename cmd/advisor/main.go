package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"accidentadvisor/internal/config"
	"accidentadvisor/internal/logging"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	dataDir    string
	corpusPath string
	vocabPath  string

	// Logger
	logger *zap.Logger

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Traffic accident fault ratio advisor",
	Long: `advisor is a retrieval-augmented consultation assistant for traffic
accident fault ratio questions.

It indexes a corpus of adjudicated accident cases, retrieves the cases most
similar to the user's situation, and composes evidence-grounded advisory
answers. When the embedding index is unavailable it degrades to keyword
matching instead of failing.

Answers are informational only and carry no legal weight.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(dataDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if apiKey != "" {
			cfg.APIKey = apiKey
		}
		if corpusPath != "" {
			cfg.CorpusPath = corpusPath
		}
		if vocabPath != "" {
			cfg.VocabPath = vocabPath
		}

		if err := logging.Initialize(cfg.DataDir); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: start the interactive consultation.
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (default: GOOGLE_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: .advisor)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "path to the case corpus JSON file")
	rootCmd.PersistentFlags().StringVar(&vocabPath, "vocab", "", "path to a custom keyword vocabulary YAML file")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
