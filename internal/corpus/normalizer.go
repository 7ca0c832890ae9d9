package corpus

import (
	"fmt"
	"strings"

	"accidentadvisor/internal/logging"
)

// Normalized is the canonical textual representation of a CaseRecord plus
// the metadata carried into the index alongside each derived chunk.
type Normalized struct {
	CaseID     string
	Text       string
	FaultRatio string
	SourceKind string // Always "accident_case" for crawled precedents
}

// Normalize renders one record into the canonical text block: case id,
// party A situation, party B situation, description, fault ratio, in that
// order. Returns false for records failing validation, never raising to
// the caller.
func Normalize(r CaseRecord) (Normalized, bool) {
	if err := r.Validate(); err != nil {
		logging.CorpusWarn("normalize: %v", err)
		return Normalized{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "사고 유형: %s\n\n", r.CaseID)
	fmt.Fprintf(&b, "차량 A 상황:\n%s\n\n", r.VehicleASituation)
	fmt.Fprintf(&b, "차량 B 상황:\n%s\n\n", r.VehicleBSituation)
	fmt.Fprintf(&b, "사고 설명:\n%s\n\n", r.AccidentDescription)
	fmt.Fprintf(&b, "과실 비율: %s", r.FaultRatio)

	return Normalized{
		CaseID:     r.CaseID,
		Text:       b.String(),
		FaultRatio: r.FaultRatio,
		SourceKind: "accident_case",
	}, true
}

// NormalizeAll normalizes every record, preserving corpus order and
// dropping records that fail validation.
func NormalizeAll(records []CaseRecord) []Normalized {
	out := make([]Normalized, 0, len(records))
	for _, r := range records {
		if n, ok := Normalize(r); ok {
			out = append(out, n)
		}
	}
	logging.CorpusDebug("normalized %d/%d records", len(out), len(records))
	return out
}
