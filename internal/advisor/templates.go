package advisor

import "strings"

// Mode selects the answer shape. All modes share the same composed prompt
// skeleton and differ only in the output instructions.
type Mode string

const (
	// ModeQuickDiagnosis gives a short fault ratio estimate.
	ModeQuickDiagnosis Mode = "quick-diagnosis"
	// ModeDetailedAnalysis gives a full case-by-case analysis.
	ModeDetailedAnalysis Mode = "detailed-analysis"
	// ModeFollowUpQuestions suggests what the user should ask next.
	ModeFollowUpQuestions Mode = "follow-up-questions"
)

// systemPrompt frames the assistant role. Every mode uses it.
const systemPrompt = `당신은 교통사고 과실 비율 상담 전문가입니다.
제공된 유사 사고 사례를 근거로 상담해 주세요.

규칙:
- 제공된 사례에 근거해서만 과실 비율을 제시하세요.
- 사례에 없는 내용은 추측하지 말고 일반적인 안내만 제공하세요.
- 답변은 참고용이며 법적 효력이 없음을 항상 안내하세요.
- 정확한 판단은 보험사나 전문가와 상담이 필요함을 안내하세요.`

// clarificationSystemPrompt drives the sufficiency check that runs before
// an answer is attempted.
const clarificationSystemPrompt = `당신은 교통사고 상담 접수 담당자입니다.
사용자의 질문에 과실 비율 상담이 가능한 정도의 정보가 있는지 판단하세요.

판단 기준: 양쪽 차량의 진행 상황(직진, 좌회전 등)과 사고 장소를 알 수 있으면 충분합니다.

정보가 충분하면 반드시 "정보 충분"이라는 문구로 답변을 시작하세요.
부족하면 어떤 정보가 더 필요한지 구체적인 질문을 2-3개 제시하세요.`

// sufficientSignal is the marker the clarification pass looks for.
const sufficientSignal = "정보 충분"

// outputInstructions is the per-mode tail of the composed prompt.
var outputInstructions = map[Mode]string{
	ModeQuickDiagnosis: `다음 형식으로 간결하게 답변하세요:

## 사고 상황 요약
## 예상 과실비율
## 즉시 조치사항
## 주요 포인트

마지막에 "정확한 법률 자문을 위해서는 전문 변호사와 상담하시기 바랍니다."를 덧붙이세요.`,

	ModeDetailedAnalysis: `다음 형식으로 상세히 답변하세요:

## 사고 상황 분석
## 유사 사례 비교
## 과실 비율 상세 분석
## 대응 방안`,

	ModeFollowUpQuestions: `위 상담 내용을 바탕으로 사용자가 추가로 확인하면 좋을 질문 3개를 제안하세요.
각 질문은 한 줄로, 번호를 붙여 작성하세요.`,
}

// userErrorMessage is what the user sees when answer generation fails.
// It never leaks internal error detail.
const userErrorMessage = "죄송합니다. 일시적인 오류로 답변을 생성하지 못했습니다. 잠시 후 다시 시도해 주세요."

// noEvidenceNotice replaces the evidence block when retrieval found nothing.
const noEvidenceNotice = `관련 사례를 찾지 못했습니다.
일반적인 안내만 제공하고, 구체적인 과실 비율은 제시하지 마세요.`

// ValidMode reports whether m is a known answer mode.
func ValidMode(m Mode) bool {
	_, ok := outputInstructions[m]
	return ok
}

// detailSignals marks questions asking for a deeper analysis.
var detailSignals = []string{"자세히", "상세", "구체적으로", "분석해"}

// ClassifyMode picks an answer mode from the question itself. Questions
// asking for depth get the detailed analysis, everything else the quick
// diagnosis. Used when the caller has not chosen a mode explicitly.
func ClassifyMode(question string) Mode {
	for _, s := range detailSignals {
		if strings.Contains(question, s) {
			return ModeDetailedAnalysis
		}
	}
	return ModeQuickDiagnosis
}
