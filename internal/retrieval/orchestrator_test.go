package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"

	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/index"
	"accidentadvisor/internal/keyword"
)

func TestMain(m *testing.M) {
	// Ignore the permanent opencensus worker goroutine started in a
	// transitive dependency's init; it cannot be stopped by this package.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// fakeVector is a scriptable VectorIndex.
type fakeVector struct {
	loadErr    error
	queryErr   error
	hits       []index.Hit
	queryCalls int
}

func (f *fakeVector) Load(collection string) (*index.CollectionInfo, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &index.CollectionInfo{Name: collection, ChunkCount: len(f.hits)}, nil
}

func (f *fakeVector) Query(ctx context.Context, collection, question string, k int) ([]index.Hit, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func testMatcher() *keyword.Matcher {
	records := []corpus.CaseRecord{
		{
			CaseID:              "A1",
			VehicleASituation:   "직진",
			VehicleBSituation:   "좌회전",
			AccidentDescription: "교차로 충돌",
			FaultRatio:          "30:70",
		},
	}
	return keyword.NewMatcher(records, nil, 3)
}

func TestInitVectorReady(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{{CaseID: "A1"}}}
	o := New(vec, testMatcher(), "traffic_accidents", 5)

	if got := o.Init(context.Background()); got != VectorReady {
		t.Fatalf("state = %v, want VectorReady", got)
	}
}

func TestInitMissingCollectionDegrades(t *testing.T) {
	vec := &fakeVector{loadErr: index.ErrCollectionNotFound}
	o := New(vec, testMatcher(), "traffic_accidents", 5)

	if got := o.Init(context.Background()); got != KeywordOnly {
		t.Fatalf("state = %v, want KeywordOnly", got)
	}

	result := o.Retrieve(context.Background(), "좌회전 사고")
	if result.Kind != Degraded {
		t.Errorf("kind = %v, want Degraded", result.Kind)
	}
	if len(result.Evidence) != 1 || result.Evidence[0].CaseID != "A1" {
		t.Errorf("keyword evidence missing: %+v", result.Evidence)
	}
	if result.Evidence[0].Source != "keyword" {
		t.Errorf("evidence source = %q, want keyword", result.Evidence[0].Source)
	}
}

func TestInitNothingAvailable(t *testing.T) {
	o := New(nil, nil, "traffic_accidents", 5)

	if got := o.Init(context.Background()); got != Unavailable {
		t.Fatalf("state = %v, want Unavailable", got)
	}
	result := o.Retrieve(context.Background(), "사고")
	if result.Kind != NoRetrieval {
		t.Errorf("kind = %v, want NoRetrieval", result.Kind)
	}
	if len(result.Evidence) != 0 {
		t.Errorf("unavailable result should carry no evidence")
	}
}

func TestRetrieveVectorPath(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{
		{CaseID: "A1", Text: "좌회전 사례", FaultRatio: "30:70", Similarity: 0.91},
		{CaseID: "A2", Text: "후진 사례", FaultRatio: "80:20", Similarity: 0.55},
	}}
	o := New(vec, testMatcher(), "traffic_accidents", 5)
	o.Init(context.Background())

	result := o.Retrieve(context.Background(), "좌회전 사고 과실")
	if result.Kind != Ok {
		t.Fatalf("kind = %v, want Ok", result.Kind)
	}
	if len(result.Evidence) != 2 {
		t.Fatalf("evidence count = %d, want 2", len(result.Evidence))
	}
	if result.Evidence[0].Source != "vector" || result.Evidence[0].Similarity != 0.91 {
		t.Errorf("vector evidence malformed: %+v", result.Evidence[0])
	}
}

func TestRetrieveEmptyVectorResultIsOk(t *testing.T) {
	vec := &fakeVector{hits: nil}
	o := New(vec, testMatcher(), "traffic_accidents", 5)
	o.Init(context.Background())

	result := o.Retrieve(context.Background(), "아무것도 매칭 안 되는 질문")
	if result.Kind != Ok {
		t.Errorf("empty hits should still be Ok, got %v", result.Kind)
	}
	if len(result.Evidence) != 0 {
		t.Errorf("expected no evidence, got %d", len(result.Evidence))
	}
}

func TestVectorFailureDegradesAndSticks(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{{CaseID: "A9"}}}
	o := New(vec, testMatcher(), "traffic_accidents", 5)
	o.Init(context.Background())

	vec.queryErr = errors.New("embedding service down")
	result := o.Retrieve(context.Background(), "좌회전 사고")
	if result.Kind != Degraded {
		t.Fatalf("kind = %v, want Degraded after vector failure", result.Kind)
	}
	if o.State() != KeywordOnly {
		t.Fatalf("state = %v, want KeywordOnly", o.State())
	}

	// The vector path recovers, but the session stays degraded.
	vec.queryErr = nil
	callsBefore := vec.queryCalls
	result = o.Retrieve(context.Background(), "좌회전 사고")
	if result.Kind != Degraded {
		t.Errorf("kind = %v, degradation should be sticky", result.Kind)
	}
	if vec.queryCalls != callsBefore {
		t.Errorf("vector path should not be retried after degradation")
	}
}

func TestVectorFailureWithoutMatcherIsUnavailable(t *testing.T) {
	vec := &fakeVector{}
	o := New(vec, nil, "traffic_accidents", 5)
	o.Init(context.Background())

	vec.queryErr = errors.New("down")
	result := o.Retrieve(context.Background(), "사고")
	if result.Kind != NoRetrieval {
		t.Errorf("kind = %v, want NoRetrieval", result.Kind)
	}
	if o.State() != Unavailable {
		t.Errorf("state = %v, want Unavailable", o.State())
	}
}

func TestRetrieveBeforeInit(t *testing.T) {
	o := New(&fakeVector{}, testMatcher(), "traffic_accidents", 5)

	result := o.Retrieve(context.Background(), "사고")
	if result.Kind != NoRetrieval {
		t.Errorf("kind = %v, want NoRetrieval before Init", result.Kind)
	}
}

func TestRetrieveRespectsVectorK(t *testing.T) {
	var hits []index.Hit
	for i := 0; i < 10; i++ {
		hits = append(hits, index.Hit{CaseID: "A1"})
	}
	vec := &fakeVector{hits: hits}
	o := New(vec, testMatcher(), "traffic_accidents", 4)
	o.Init(context.Background())

	result := o.Retrieve(context.Background(), "사고")
	if len(result.Evidence) != 4 {
		t.Errorf("evidence count = %d, want 4", len(result.Evidence))
	}
}
