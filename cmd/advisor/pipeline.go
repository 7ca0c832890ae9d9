package main

import (
	"fmt"

	"go.uber.org/zap"

	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/embedding"
	"accidentadvisor/internal/index"
	"accidentadvisor/internal/keyword"
	"accidentadvisor/internal/retrieval"
)

// loadCorpus reads and validates the case corpus.
func loadCorpus() ([]corpus.CaseRecord, error) {
	if cfg.CorpusPath == "" {
		return nil, fmt.Errorf("no corpus path configured (use --corpus or set corpus_path in config)")
	}
	records, err := corpus.Load(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	logger.Info("corpus loaded", zap.String("path", cfg.CorpusPath), zap.Int("records", len(records)))
	return records, nil
}

// newEmbeddingEngine builds the embedding engine from config.
func newEmbeddingEngine() (embedding.Engine, error) {
	embCfg := embedding.DefaultConfig()
	embCfg.GenAIAPIKey = cfg.APIKey
	embCfg.GenAIModel = cfg.EmbeddingModel
	return embedding.NewEngine(embCfg)
}

// newMatcher builds the keyword matcher, with the custom vocabulary when
// one is configured.
func newMatcher(records []corpus.CaseRecord) *keyword.Matcher {
	terms := []string(nil)
	if cfg.VocabPath != "" {
		loaded, err := keyword.LoadVocabulary(cfg.VocabPath)
		if err != nil {
			logger.Warn("custom vocabulary unavailable, using built-in terms", zap.Error(err))
		} else {
			terms = loaded
		}
	}
	return keyword.NewMatcher(records, terms, cfg.KeywordK)
}

// newOrchestrator wires the full retrieval stack. The returned index must
// be closed by the caller; it is nil when the index could not be opened.
func newOrchestrator(records []corpus.CaseRecord) (*retrieval.Orchestrator, *index.Index) {
	matcher := newMatcher(records)

	engine, err := newEmbeddingEngine()
	if err != nil {
		logger.Warn("embedding engine unavailable, keyword matching only", zap.Error(err))
		return retrieval.New(nil, matcher, cfg.Collection, cfg.VectorK), nil
	}

	idx, err := index.Open(cfg.IndexPath, engine)
	if err != nil {
		logger.Warn("embedding index unavailable, keyword matching only", zap.Error(err))
		return retrieval.New(nil, matcher, cfg.Collection, cfg.VectorK), nil
	}

	return retrieval.New(idx, matcher, cfg.Collection, cfg.VectorK), idx
}
