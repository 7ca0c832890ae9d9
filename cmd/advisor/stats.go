package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"accidentadvisor/internal/index"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and index statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	records, err := loadCorpus()
	if err != nil {
		return err
	}
	fmt.Printf("Corpus: %d valid records (%s)\n", len(records), cfg.CorpusPath)

	matcher := newMatcher(records)
	fmt.Printf("Keyword vocabulary: %d terms\n", len(matcher.Terms()))

	engine, err := newEmbeddingEngine()
	if err != nil {
		fmt.Println("Embedding engine: unavailable")
		return nil
	}

	idx, err := index.Open(cfg.IndexPath, engine)
	if err != nil {
		fmt.Printf("Index: unavailable (%v)\n", err)
		return nil
	}
	defer idx.Close()

	fmt.Printf("Index: %s (sqlite-vec: %v)\n", cfg.IndexPath, idx.VectorExtensionAvailable())

	info, err := idx.Load(cfg.Collection)
	if errors.Is(err, index.ErrCollectionNotFound) {
		fmt.Printf("Collection %q: not built yet (run 'advisor index')\n", cfg.Collection)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Collection %q: generation %d, %d chunks, engine %s (%d dims)\n",
		info.Name, info.Generation, info.ChunkCount, info.Engine, info.Dimensions)

	stats, err := idx.Stats()
	if err == nil && len(stats) > 1 {
		fmt.Println("All collections:")
		for name, count := range stats {
			fmt.Printf("  %s: %d chunks\n", name, count)
		}
	}
	return nil
}
