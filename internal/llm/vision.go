package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"accidentadvisor/internal/logging"
)

// visionPrompt asks the model to describe an accident scene photo in the
// same vocabulary the corpus uses, so the description feeds straight into
// retrieval.
const visionPrompt = `다음 교통사고 현장 사진을 분석해 주세요.
사진에서 확인할 수 있는 내용을 설명해 주세요:
- 차량들의 위치와 진행 방향 (직진, 좌회전, 우회전, 후진 등)
- 도로 환경 (교차로, 신호등, 차선, 주차장 등)
- 충돌 부위와 피해 상황
확인할 수 없는 내용은 추측하지 말고 생략해 주세요.`

// VisionAnalyzer describes accident scene photos so the description can be
// appended to the user's question before retrieval.
type VisionAnalyzer struct {
	client *genai.Client
	model  string
}

// NewVisionAnalyzer creates a vision analyzer.
func NewVisionAnalyzer(apiKey, model string) (*VisionAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &VisionAnalyzer{client: client, model: model}, nil
}

// Describe analyzes one accident photo and returns a Korean scene
// description. mimeType is e.g. "image/jpeg".
func (v *VisionAnalyzer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "VisionDescribe")
	defer timer.Stop()

	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(visionPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	result, err := v.client.Models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.2)),
		MaxOutputTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("vision analysis failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}

	logging.APIDebug("Vision description: %d chars from %d byte image", len(text), len(image))
	return text, nil
}
