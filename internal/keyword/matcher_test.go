package keyword

import (
	"os"
	"path/filepath"
	"testing"

	"accidentadvisor/internal/corpus"
)

func testRecords() []corpus.CaseRecord {
	return []corpus.CaseRecord{
		{
			CaseID:              "A1",
			VehicleASituation:   "직진 신호에 교차로 진입",
			VehicleBSituation:   "좌회전 신호 없이 좌회전",
			AccidentDescription: "교차로에서 직진 차량과 좌회전 차량이 충돌",
			FaultRatio:          "30:70",
		},
		{
			CaseID:              "A2",
			VehicleASituation:   "주차장에서 후진",
			VehicleBSituation:   "주차장 통로 직진",
			AccidentDescription: "주차장 내 후진 차량과 통행 차량의 접촉",
			FaultRatio:          "80:20",
		},
		{
			CaseID:              "A3",
			VehicleASituation:   "1차로에서 차선변경",
			VehicleBSituation:   "2차로 직진",
			AccidentDescription: "차선변경 중 측면 접촉",
			FaultRatio:          "70:30",
		},
	}
}

func TestSearchLeftTurnScenario(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 3)

	matches := m.Search("좌회전 중 충돌")
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Record.CaseID != "A1" {
		t.Errorf("match = %s, want A1", matches[0].Record.CaseID)
	}
	if matches[0].Score < 1 {
		t.Errorf("score = %d, want >= 1", matches[0].Score)
	}
}

func TestSearchNoVocabularyTerms(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 3)

	if matches := m.Search("보험 처리는 어떻게 하나요"); matches != nil {
		t.Errorf("query without vocabulary terms should match nothing, got %d", len(matches))
	}
}

func TestSearchExcludesZeroScores(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 3)

	matches := m.Search("주차장 후진 사고")
	for _, match := range matches {
		if match.Score == 0 {
			t.Errorf("record %s returned with zero score", match.Record.CaseID)
		}
	}
	if len(matches) == 0 || matches[0].Record.CaseID != "A2" {
		t.Fatalf("expected A2 as best match, got %+v", matches)
	}
}

func TestSearchRanksByTermCount(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 3)

	// 직진 appears in all three records; 교차로 and 좌회전 only in A1.
	matches := m.Search("교차로에서 직진하다가 좌회전 차량과 부딪혔어요")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Record.CaseID != "A1" {
		t.Errorf("best match = %s, want A1", matches[0].Record.CaseID)
	}
	if matches[0].Score != 3 {
		t.Errorf("A1 score = %d, want 3", matches[0].Score)
	}
}

func TestSearchStableTieBreak(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 3)

	// 직진 alone scores 1 on every record, so corpus order decides.
	matches := m.Search("직진")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	for i, want := range []string{"A1", "A2", "A3"} {
		if matches[i].Record.CaseID != want {
			t.Errorf("position %d = %s, want %s (corpus order)", i, matches[i].Record.CaseID, want)
		}
	}
}

func TestSearchTopKBound(t *testing.T) {
	m := NewMatcher(testRecords(), nil, 2)

	matches := m.Search("직진")
	if len(matches) != 2 {
		t.Errorf("topK=2 should cap results at 2, got %d", len(matches))
	}
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := "terms:\n  - 음주운전\n  - 직진\n  - 고속도로\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	terms, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}

	// Built-ins kept, custom terms appended, duplicate 직진 dropped.
	if len(terms) != len(defaultTerms)+2 {
		t.Errorf("term count = %d, want %d", len(terms), len(defaultTerms)+2)
	}
	has := func(term string) bool {
		for _, t := range terms {
			if t == term {
				return true
			}
		}
		return false
	}
	if !has("음주운전") || !has("고속도로") {
		t.Error("custom terms missing from vocabulary")
	}
}

func TestLoadVocabularyMissingFile(t *testing.T) {
	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing vocabulary file")
	}
}
