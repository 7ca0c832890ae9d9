// Package retrieval coordinates the two retrieval paths and degrades
// gracefully between them. Vector search is preferred; keyword matching is
// the fallback; when neither works the orchestrator still answers, it just
// answers with no evidence.
package retrieval

import (
	"context"
	"errors"
	"sync"

	"accidentadvisor/internal/index"
	"accidentadvisor/internal/keyword"
	"accidentadvisor/internal/logging"
)

// =============================================================================
// STATES AND RESULT KINDS
// =============================================================================

// State is the orchestrator's retrieval capability.
type State int

const (
	// Uninitialized means Init has not run yet.
	Uninitialized State = iota
	// VectorReady means the embedding index is loaded and serving.
	VectorReady
	// KeywordOnly means vector search is unavailable and only the keyword
	// matcher serves queries. Once entered, the orchestrator stays here:
	// a vector path that failed mid-session is not retried.
	KeywordOnly
	// Unavailable means no retrieval path works at all.
	Unavailable
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case VectorReady:
		return "vector_ready"
	case KeywordOnly:
		return "keyword_only"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Kind classifies how a retrieval result was produced.
type Kind int

const (
	// Ok means the preferred vector path served the query.
	Ok Kind = iota
	// Degraded means the keyword fallback served the query.
	Degraded
	// NoRetrieval means no path could serve the query; the result carries
	// no evidence and the advisor must say so.
	NoRetrieval
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Degraded:
		return "degraded"
	case NoRetrieval:
		return "no_retrieval"
	default:
		return "unknown"
	}
}

// Evidence is one retrieved case fragment, from either path.
type Evidence struct {
	CaseID       string
	Text         string
	FaultRatio   string
	Similarity   float64  // cosine similarity; zero for keyword hits
	Source       string   // "vector" or "keyword"
	MatchedTerms []string // vocabulary terms, keyword hits only
}

// Result is what a retrieval attempt produced. Evidence may be empty even
// for an Ok result: a well-formed query can simply match nothing.
type Result struct {
	Kind     Kind
	State    State
	Evidence []Evidence
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// VectorIndex is the slice of the embedding index the orchestrator needs.
type VectorIndex interface {
	Load(collection string) (*index.CollectionInfo, error)
	Query(ctx context.Context, collection, question string, k int) ([]index.Hit, error)
}

// Orchestrator routes queries to the best available retrieval path and
// remembers when a path has failed. Safe for concurrent use.
type Orchestrator struct {
	mu         sync.Mutex
	state      State
	vector     VectorIndex
	matcher    *keyword.Matcher
	collection string
	vectorK    int
}

// New creates an orchestrator. Either source may be nil; Init decides what
// the orchestrator can actually serve.
func New(vector VectorIndex, matcher *keyword.Matcher, collection string, vectorK int) *Orchestrator {
	if vectorK <= 0 {
		vectorK = 5
	}
	return &Orchestrator{
		state:      Uninitialized,
		vector:     vector,
		matcher:    matcher,
		collection: collection,
		vectorK:    vectorK,
	}
}

// Init probes the vector index and settles the starting state. A missing or
// unreadable collection is not an error: the orchestrator degrades and the
// caller keeps going.
func (o *Orchestrator) Init(ctx context.Context) State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.vector != nil {
		info, err := o.vector.Load(o.collection)
		if err == nil {
			o.state = VectorReady
			logging.Retrieval("Vector index ready: collection=%s chunks=%d", info.Name, info.ChunkCount)
			return o.state
		}
		if errors.Is(err, index.ErrCollectionNotFound) {
			logging.RetrievalWarn("Collection %q not built; degrading to keyword matching", o.collection)
		} else {
			logging.RetrievalWarn("Vector index unusable (%v); degrading to keyword matching", err)
		}
	}

	if o.matcher != nil {
		o.state = KeywordOnly
	} else {
		o.state = Unavailable
		logging.Get(logging.CategoryRetrieval).Error("No retrieval path available")
	}
	return o.state
}

// State returns the current retrieval state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Retrieve serves one query through the best path the current state allows.
// A vector failure mid-query degrades this call to the keyword path and
// pins the orchestrator in KeywordOnly for all later calls.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) Result {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Retrieve")
	defer timer.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case Uninitialized:
		logging.RetrievalWarn("Retrieve called before Init")
		return Result{Kind: NoRetrieval, State: o.state}

	case VectorReady:
		hits, err := o.vector.Query(ctx, o.collection, query, o.vectorK)
		if err == nil {
			logging.RetrievalDebug("Vector path returned %d hits", len(hits))
			return Result{Kind: Ok, State: o.state, Evidence: vectorEvidence(hits)}
		}
		logging.RetrievalWarn("Vector query failed (%v); degrading session to keyword matching", err)
		if o.matcher != nil {
			o.state = KeywordOnly
			return Result{Kind: Degraded, State: o.state, Evidence: o.keywordEvidence(query)}
		}
		o.state = Unavailable
		return Result{Kind: NoRetrieval, State: o.state}

	case KeywordOnly:
		return Result{Kind: Degraded, State: o.state, Evidence: o.keywordEvidence(query)}

	default:
		return Result{Kind: NoRetrieval, State: o.state}
	}
}

func (o *Orchestrator) keywordEvidence(query string) []Evidence {
	matches := o.matcher.Search(query)
	logging.RetrievalDebug("Keyword path returned %d matches", len(matches))

	evidence := make([]Evidence, 0, len(matches))
	for _, m := range matches {
		evidence = append(evidence, Evidence{
			CaseID:       m.Record.CaseID,
			Text:         m.Record.SearchText(),
			FaultRatio:   m.Record.FaultRatio,
			Source:       "keyword",
			MatchedTerms: m.Terms,
		})
	}
	return evidence
}

func vectorEvidence(hits []index.Hit) []Evidence {
	evidence := make([]Evidence, 0, len(hits))
	for _, h := range hits {
		evidence = append(evidence, Evidence{
			CaseID:     h.CaseID,
			Text:       h.Text,
			FaultRatio: h.FaultRatio,
			Similarity: h.Similarity,
			Source:     "vector",
		})
	}
	return evidence
}
