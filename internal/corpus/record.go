// Package corpus loads and normalizes precedent case records collected by
// the external crawler. Records are externally sourced and may be partial;
// malformed records are skipped with a log entry rather than failing the load.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"accidentadvisor/internal/logging"
)

// ErrMissingField marks a record missing one of the required fields.
var ErrMissingField = errors.New("case record missing required field")

// CaseRecord is one crawled precedent case. Immutable once loaded.
type CaseRecord struct {
	CaseID              string    `json:"case_id"`
	VehicleASituation   string    `json:"vehicle_A_situation"`
	VehicleBSituation   string    `json:"vehicle_B_situation"`
	AccidentDescription string    `json:"accident_description"`
	FaultRatio          string    `json:"fault_ratio"` // Free-form "N : M"; no sum-to-100 invariant
	CollectedAt         time.Time `json:"collected_at,omitempty"`
}

// Validate reports whether the record carries every required field.
func (r CaseRecord) Validate() error {
	switch {
	case r.CaseID == "":
		return fmt.Errorf("%w: case_id", ErrMissingField)
	case r.VehicleASituation == "":
		return fmt.Errorf("%w: vehicle_A_situation (case %s)", ErrMissingField, r.CaseID)
	case r.VehicleBSituation == "":
		return fmt.Errorf("%w: vehicle_B_situation (case %s)", ErrMissingField, r.CaseID)
	case r.AccidentDescription == "":
		return fmt.Errorf("%w: accident_description (case %s)", ErrMissingField, r.CaseID)
	case r.FaultRatio == "":
		return fmt.Errorf("%w: fault_ratio (case %s)", ErrMissingField, r.CaseID)
	}
	return nil
}

// SearchText returns the record fields the keyword matcher scores against.
func (r CaseRecord) SearchText() string {
	return r.VehicleASituation + " " + r.VehicleBSituation + " " + r.AccidentDescription
}

// Load reads the corpus file and returns the valid records in file order.
// Invalid records are skipped and logged; an unreadable or unparseable file
// is an error.
func Load(path string) ([]CaseRecord, error) {
	timer := logging.StartTimer(logging.CategoryCorpus, "Load")
	defer timer.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var raw []CaseRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	records := make([]CaseRecord, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		if err := r.Validate(); err != nil {
			logging.CorpusWarn("skipping record: %v", err)
			skipped++
			continue
		}
		records = append(records, r)
	}

	logging.Corpus("loaded %d case records from %s (%d skipped)", len(records), path, skipped)
	return records, nil
}
