// Package keyword implements the fallback retrieval path: a vocabulary of
// traffic accident terms is matched against the corpus with plain substring
// counting. It needs no embeddings, no database, and no network, which is
// exactly why the orchestrator can always fall back to it.
package keyword

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/logging"
)

// defaultTerms is the built-in accident vocabulary. Terms cover maneuvers,
// signals, and locations that appear in fault ratio case law.
var defaultTerms = []string{
	"직진", "좌회전", "우회전",
	"신호등", "교차로",
	"녹색", "적색", "황색",
	"비보호", "화살표", "점멸",
	"후진", "차선변경", "주차장",
}

// Match is one scored corpus record.
type Match struct {
	Record corpus.CaseRecord
	Score  int
	Terms  []string // vocabulary terms found in both query and record
}

// Matcher scores corpus records against queries using a shared vocabulary.
type Matcher struct {
	terms   []string
	records []corpus.CaseRecord
	topK    int
}

// vocabularyFile is the on-disk shape of a custom vocabulary.
type vocabularyFile struct {
	Terms []string `yaml:"terms"`
}

// LoadVocabulary reads extra terms from a YAML file. The built-in terms are
// always kept; file terms are appended, duplicates dropped.
func LoadVocabulary(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}

	seen := make(map[string]bool, len(defaultTerms)+len(vf.Terms))
	terms := make([]string, 0, len(defaultTerms)+len(vf.Terms))
	for _, t := range append(append([]string{}, defaultTerms...), vf.Terms...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}

	logging.Keyword("Loaded vocabulary: %d terms (%d custom) from %s", len(terms), len(terms)-len(defaultTerms), path)
	return terms, nil
}

// NewMatcher builds a matcher over the given records. A nil or empty terms
// slice selects the built-in vocabulary. topK bounds how many matches a
// search returns; non-positive values fall back to 3.
func NewMatcher(records []corpus.CaseRecord, terms []string, topK int) *Matcher {
	if len(terms) == 0 {
		terms = defaultTerms
	}
	if topK <= 0 {
		topK = 3
	}
	return &Matcher{terms: terms, records: records, topK: topK}
}

// Terms returns the active vocabulary.
func (m *Matcher) Terms() []string {
	return m.terms
}

// QueryTerms returns the vocabulary terms present in the query, in
// vocabulary order.
func (m *Matcher) QueryTerms(query string) []string {
	var found []string
	for _, t := range m.terms {
		if strings.Contains(query, t) {
			found = append(found, t)
		}
	}
	return found
}

// Search scores every record by how many query vocabulary terms its text
// contains and returns the best matches. A query containing no vocabulary
// terms yields no matches. Records scoring zero are excluded. Ties keep
// corpus order, so results are deterministic.
func (m *Matcher) Search(query string) []Match {
	timer := logging.StartTimer(logging.CategoryKeyword, "Search")
	defer timer.Stop()

	queryTerms := m.QueryTerms(query)
	if len(queryTerms) == 0 {
		logging.KeywordDebug("No vocabulary terms in query")
		return nil
	}
	logging.KeywordDebug("Query terms: %v", queryTerms)

	var matches []Match
	for _, rec := range m.records {
		text := rec.SearchText()
		var hit []string
		for _, t := range queryTerms {
			if strings.Contains(text, t) {
				hit = append(hit, t)
			}
		}
		if len(hit) == 0 {
			continue
		}
		matches = append(matches, Match{Record: rec, Score: len(hit), Terms: hit})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > m.topK {
		matches = matches[:m.topK]
	}

	logging.Keyword("Keyword search matched %d records (query terms=%d)", len(matches), len(queryTerms))
	return matches
}
