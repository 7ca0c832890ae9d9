// Package advisor composes retrieval evidence, conversation history, and
// the user's question into bounded prompts and turns completions into
// advisory answers.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"accidentadvisor/internal/llm"
	"accidentadvisor/internal/logging"
	"accidentadvisor/internal/retrieval"
)

// evidencePreviewRunes caps how much of each retrieved case enters the
// prompt. Together with the evidence top-K and the history window this
// keeps the prompt size bounded.
const evidencePreviewRunes = 300

// Answer is one advisory response.
type Answer struct {
	Text     string
	Kind     retrieval.Kind
	Evidence []retrieval.Evidence
}

// Clarification is the outcome of the sufficiency check.
type Clarification struct {
	Sufficient bool
	Questions  string // model's clarifying questions when insufficient
}

// Advisor answers fault ratio questions over a retrieval orchestrator and
// an LLM client.
type Advisor struct {
	orchestrator *retrieval.Orchestrator
	client       llm.Client
}

// New creates an advisor.
func New(orchestrator *retrieval.Orchestrator, client llm.Client) *Advisor {
	return &Advisor{orchestrator: orchestrator, client: client}
}

// Clarify checks whether the question carries enough detail to answer.
// When the check itself fails, the question is treated as sufficient: a
// broken clarification pass must never block the user.
func (a *Advisor) Clarify(ctx context.Context, question string) (Clarification, error) {
	timer := logging.StartTimer(logging.CategoryAdvisor, "Clarify")
	defer timer.Stop()

	response, err := a.client.Complete(ctx, clarificationSystemPrompt, question)
	if err != nil {
		logging.AdvisorDebug("Clarification pass failed, assuming sufficient: %v", err)
		return Clarification{Sufficient: true}, nil
	}

	if strings.Contains(response, sufficientSignal) {
		return Clarification{Sufficient: true}, nil
	}
	logging.Advisor("Question needs clarification")
	return Clarification{Sufficient: false, Questions: response}, nil
}

// Ask retrieves evidence for the question, composes the prompt for the
// given mode, and returns the completion. On LLM failure the returned
// answer carries a fixed user-safe message alongside the error, and the
// failed exchange is not recorded in the session.
func (a *Advisor) Ask(ctx context.Context, session *Session, question string, mode Mode) (Answer, error) {
	return a.AskWithImage(ctx, session, question, "", mode)
}

// AskWithImage is Ask with a scene description from the vision analyzer.
// The description joins the retrieval query and gets its own prompt section
// next to the retrieved cases; the session records only the question itself.
func (a *Advisor) AskWithImage(ctx context.Context, session *Session, question, imageAnalysis string, mode Mode) (Answer, error) {
	timer := logging.StartTimer(logging.CategoryAdvisor, "Ask")
	defer timer.StopWithInfo("mode=%s", mode)

	if !ValidMode(mode) {
		return Answer{}, fmt.Errorf("unknown answer mode: %s", mode)
	}

	retrievalQuery := question
	if imageAnalysis != "" {
		retrievalQuery = question + "\n" + imageAnalysis
	}
	result := a.orchestrator.Retrieve(ctx, retrievalQuery)
	logging.Advisor("Retrieval for session %s: kind=%s evidence=%d", session.ID, result.Kind, len(result.Evidence))

	prompt := composePrompt(mode, result, session.History(), question, imageAnalysis)

	text, err := a.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		logging.Get(logging.CategoryAdvisor).Error("Answer generation failed: %v", err)
		return Answer{
			Text:     userErrorMessage,
			Kind:     result.Kind,
			Evidence: result.Evidence,
		}, fmt.Errorf("answer generation failed: %w", err)
	}

	session.Append(question, text)

	return Answer{
		Text:     text,
		Kind:     result.Kind,
		Evidence: result.Evidence,
	}, nil
}

// composePrompt assembles the user prompt in a fixed section order:
// evidence (cases, then the photo analysis when present), history, question,
// output instructions. The order never varies between modes.
func composePrompt(mode Mode, result retrieval.Result, history []Exchange, question, imageAnalysis string) string {
	var b strings.Builder

	b.WriteString("[유사 사고 사례]\n")
	switch {
	case result.Kind == retrieval.NoRetrieval:
		b.WriteString("사례 검색을 사용할 수 없습니다.\n")
		b.WriteString(noEvidenceNotice)
		b.WriteString("\n")
	case len(result.Evidence) == 0:
		b.WriteString(noEvidenceNotice)
		b.WriteString("\n")
	default:
		for i, ev := range result.Evidence {
			fmt.Fprintf(&b, "\n사례 %d (사건 ID: %s", i+1, ev.CaseID)
			if ev.FaultRatio != "" {
				fmt.Fprintf(&b, ", 과실 비율: %s", ev.FaultRatio)
			}
			b.WriteString(")\n")
			b.WriteString(preview(ev.Text))
			b.WriteString("\n")
		}
	}

	if imageAnalysis != "" {
		b.WriteString("\n[사진 분석 결과]\n")
		b.WriteString(imageAnalysis)
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("\n[이전 대화]\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "사용자: %s\n상담사: %s\n", ex.User, ex.Assistant)
		}
	}

	b.WriteString("\n[사용자 질문]\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(outputInstructions[mode])

	return b.String()
}

// preview truncates evidence text to the preview budget.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= evidencePreviewRunes {
		return text
	}
	return string(runes[:evidencePreviewRunes]) + "..."
}
