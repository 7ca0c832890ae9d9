package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"accidentadvisor/internal/index"
	"accidentadvisor/internal/retrieval"
)

// mockClient records prompts and returns scripted completions.
type mockClient struct {
	response string
	err      error

	lastSystem string
	lastUser   string
	calls      int
}

func (m *mockClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// fakeVector serves fixed hits for the orchestrator.
type fakeVector struct {
	hits []index.Hit
	err  error
}

func (f *fakeVector) Load(collection string) (*index.CollectionInfo, error) {
	return &index.CollectionInfo{Name: collection, ChunkCount: len(f.hits)}, nil
}

func (f *fakeVector) Query(ctx context.Context, collection, question string, k int) ([]index.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func newTestAdvisor(t *testing.T, vec *fakeVector, client *mockClient) (*Advisor, *Session) {
	t.Helper()
	o := retrieval.New(vec, nil, "traffic_accidents", 5)
	o.Init(context.Background())
	return New(o, client), NewSession(3)
}

func TestAskComposesPromptInOrder(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{
		{CaseID: "A1", Text: "직진 차량과 좌회전 차량의 충돌 사례", FaultRatio: "30:70", Similarity: 0.9},
	}}
	client := &mockClient{response: "예상 과실 비율은 30:70입니다."}
	adv, session := newTestAdvisor(t, vec, client)
	session.Append("이전 질문", "이전 답변")

	answer, err := adv.Ask(context.Background(), session, "좌회전 사고 과실이 궁금합니다", ModeQuickDiagnosis)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Kind != retrieval.Ok {
		t.Errorf("kind = %v, want Ok", answer.Kind)
	}

	prompt := client.lastUser
	sections := []string{
		"[유사 사고 사례]",
		"사건 ID: A1",
		"과실 비율: 30:70",
		"[이전 대화]",
		"이전 질문",
		"[사용자 질문]",
		"좌회전 사고 과실이 궁금합니다",
		"## 사고 상황 요약",
		"## 예상 과실비율",
		"## 즉시 조치사항",
		"## 주요 포인트",
		"전문 변호사와 상담",
	}
	pos := -1
	for _, section := range sections {
		idx := strings.Index(prompt, section)
		if idx < 0 {
			t.Fatalf("prompt missing section %q:\n%s", section, prompt)
		}
		if idx < pos {
			t.Errorf("section %q out of order", section)
		}
		pos = idx
	}

	if client.lastSystem != systemPrompt {
		t.Error("system prompt not applied")
	}
}

func TestAskWithImagePlacesAnalysisInEvidenceBlock(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{{CaseID: "A1", Text: "교차로 충돌 사례"}}}
	client := &mockClient{response: "답변"}
	adv, session := newTestAdvisor(t, vec, client)

	description := "교차로에서 직진 차량과 좌회전 차량이 충돌한 장면"
	_, err := adv.AskWithImage(context.Background(), session, "과실이 궁금합니다", description, ModeQuickDiagnosis)
	if err != nil {
		t.Fatal(err)
	}

	prompt := client.lastUser
	evidencePos := strings.Index(prompt, "[유사 사고 사례]")
	imagePos := strings.Index(prompt, "[사진 분석 결과]")
	questionPos := strings.Index(prompt, "[사용자 질문]")
	if imagePos < 0 {
		t.Fatalf("image analysis section missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, description) {
		t.Error("image description not in prompt")
	}
	if !(evidencePos < imagePos && imagePos < questionPos) {
		t.Errorf("image analysis section out of order: evidence=%d image=%d question=%d",
			evidencePos, imagePos, questionPos)
	}

	history := session.History()
	if len(history) != 1 || history[0].User != "과실이 궁금합니다" {
		t.Errorf("session should record the bare question, got %+v", history)
	}
}

func TestAskTruncatesLongEvidence(t *testing.T) {
	long := strings.Repeat("가", 500)
	vec := &fakeVector{hits: []index.Hit{{CaseID: "A1", Text: long}}}
	client := &mockClient{response: "답변"}
	adv, session := newTestAdvisor(t, vec, client)

	if _, err := adv.Ask(context.Background(), session, "질문", ModeDetailedAnalysis); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(client.lastUser, long) {
		t.Error("evidence was not truncated")
	}
	if !strings.Contains(client.lastUser, strings.Repeat("가", evidencePreviewRunes)+"...") {
		t.Error("truncated preview missing ellipsis")
	}
}

func TestAskNoEvidence(t *testing.T) {
	vec := &fakeVector{hits: nil}
	client := &mockClient{response: "일반적인 안내입니다."}
	adv, session := newTestAdvisor(t, vec, client)

	answer, err := adv.Ask(context.Background(), session, "질문", ModeQuickDiagnosis)
	if err != nil {
		t.Fatal(err)
	}
	if len(answer.Evidence) != 0 {
		t.Errorf("expected no evidence, got %d", len(answer.Evidence))
	}
	if !strings.Contains(client.lastUser, "관련 사례를 찾지 못했습니다") {
		t.Error("prompt should state that no cases were found")
	}
}

func TestAskRecordsExchange(t *testing.T) {
	vec := &fakeVector{}
	client := &mockClient{response: "상담 답변"}
	adv, session := newTestAdvisor(t, vec, client)

	if _, err := adv.Ask(context.Background(), session, "첫 질문", ModeQuickDiagnosis); err != nil {
		t.Fatal(err)
	}

	history := session.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].User != "첫 질문" || history[0].Assistant != "상담 답변" {
		t.Errorf("exchange not recorded: %+v", history[0])
	}
}

func TestAskLLMFailure(t *testing.T) {
	vec := &fakeVector{hits: []index.Hit{{CaseID: "A1", Text: "사례"}}}
	client := &mockClient{err: errors.New("service unavailable")}
	adv, session := newTestAdvisor(t, vec, client)

	answer, err := adv.Ask(context.Background(), session, "질문", ModeQuickDiagnosis)
	if err == nil {
		t.Fatal("expected error when completion fails")
	}
	if answer.Text != userErrorMessage {
		t.Errorf("answer text = %q, want fixed user-safe message", answer.Text)
	}
	if len(session.History()) != 0 {
		t.Error("failed exchange must not enter session history")
	}
}

func TestAskInvalidMode(t *testing.T) {
	adv, session := newTestAdvisor(t, &fakeVector{}, &mockClient{response: "x"})

	if _, err := adv.Ask(context.Background(), session, "질문", Mode("essay")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestClarifySufficient(t *testing.T) {
	client := &mockClient{response: "정보 충분. 상담을 진행할 수 있습니다."}
	adv, _ := newTestAdvisor(t, &fakeVector{}, client)

	c, err := adv.Clarify(context.Background(), "직진 중 좌회전 차량과 교차로에서 충돌했습니다")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Sufficient {
		t.Error("expected sufficient")
	}
}

func TestClarifyInsufficient(t *testing.T) {
	client := &mockClient{response: "1. 어느 방향으로 진행 중이었나요?\n2. 사고 장소는 어디인가요?"}
	adv, _ := newTestAdvisor(t, &fakeVector{}, client)

	c, err := adv.Clarify(context.Background(), "사고가 났어요")
	if err != nil {
		t.Fatal(err)
	}
	if c.Sufficient {
		t.Error("expected insufficient")
	}
	if !strings.Contains(c.Questions, "어느 방향") {
		t.Errorf("clarifying questions missing: %q", c.Questions)
	}
}

func TestClarifyFailureAssumesSufficient(t *testing.T) {
	client := &mockClient{err: errors.New("down")}
	adv, _ := newTestAdvisor(t, &fakeVector{}, client)

	c, err := adv.Clarify(context.Background(), "사고가 났어요")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Sufficient {
		t.Error("a broken clarification pass must not block the user")
	}
}

func TestClassifyMode(t *testing.T) {
	cases := []struct {
		question string
		want     Mode
	}{
		{"교차로에서 좌회전 사고가 났어요", ModeQuickDiagnosis},
		{"과실 비율을 자세히 분석해 주세요", ModeDetailedAnalysis},
		{"상세한 판단 근거가 궁금합니다", ModeDetailedAnalysis},
		{"구체적으로 설명해 주세요", ModeDetailedAnalysis},
	}
	for _, tc := range cases {
		if got := ClassifyMode(tc.question); got != tc.want {
			t.Errorf("ClassifyMode(%q) = %s, want %s", tc.question, got, tc.want)
		}
	}
}
