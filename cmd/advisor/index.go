package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accidentadvisor/internal/chunker"
	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the embedding index from the case corpus",
	Long: `Reads the case corpus, normalizes and chunks every record, embeds the
chunks, and installs them as the new active generation of the collection.

The previous index generation keeps serving until the build commits, so a
failed build never leaves the index in a partial state. Rebuilding from the
same corpus is safe to repeat.`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	records, err := loadCorpus()
	if err != nil {
		return err
	}

	normalized := corpus.NormalizeAll(records)
	if len(normalized) == 0 {
		return fmt.Errorf("corpus contains no indexable records")
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	ratios := make(map[string]string, len(records))
	for _, r := range records {
		ratios[r.CaseID] = r.FaultRatio
	}

	var docs []index.Document
	for _, n := range normalized {
		for _, c := range splitter.SplitRecord(n) {
			docs = append(docs, index.Document{
				CaseID:     c.SourceCaseID,
				Seq:        c.Index,
				Offset:     c.Offset,
				Text:       c.Text,
				FaultRatio: ratios[c.SourceCaseID],
			})
		}
	}
	logger.Info("corpus chunked",
		zap.Int("records", len(normalized)),
		zap.Int("chunks", len(docs)),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap))

	engine, err := newEmbeddingEngine()
	if err != nil {
		return fmt.Errorf("embedding engine required for indexing: %w", err)
	}

	idx, err := index.Open(cfg.IndexPath, engine)
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.Build(cmd.Context(), cfg.Collection, docs); err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	info, err := idx.Load(cfg.Collection)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks from %d cases into collection %q (generation %d)\n",
		info.ChunkCount, len(normalized), info.Name, info.Generation)
	return nil
}
