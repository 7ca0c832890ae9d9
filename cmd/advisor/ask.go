package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accidentadvisor/internal/advisor"
	"accidentadvisor/internal/llm"
	"accidentadvisor/internal/retrieval"
)

var (
	askMode      string
	askImagePath string
	askNoClarify bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single fault ratio question",
	Long: `Answers one question against the indexed case corpus.

Modes:
  quick-diagnosis      short fault ratio estimate (default)
  detailed-analysis    full case-by-case analysis
  follow-up-questions  suggested questions to ask next

With --image, the accident photo is described by the vision model and the
description is appended to the question before retrieval.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", string(advisor.ModeQuickDiagnosis), "answer mode")
	askCmd.Flags().StringVar(&askImagePath, "image", "", "path to an accident scene photo")
	askCmd.Flags().BoolVar(&askNoClarify, "no-clarify", false, "skip the information sufficiency check")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	mode := advisor.Mode(askMode)
	if !advisor.ValidMode(mode) {
		return fmt.Errorf("unknown mode %q", askMode)
	}
	if !cmd.Flags().Changed("mode") {
		mode = advisor.ClassifyMode(question)
	}

	client, err := llm.NewGeminiClient(llmConfig())
	if err != nil {
		return err
	}

	var imageAnalysis string
	if askImagePath != "" {
		imageAnalysis, err = describeImage(cmd, askImagePath)
		if err != nil {
			return err
		}
	}

	records, err := loadCorpus()
	if err != nil {
		return err
	}
	orchestrator, idx := newOrchestrator(records)
	if idx != nil {
		defer idx.Close()
	}
	state := orchestrator.Init(cmd.Context())
	logger.Info("retrieval ready", zap.String("state", state.String()))

	adv := advisor.New(orchestrator, client)
	session := advisor.NewSession(cfg.ConversationWindow)

	if !askNoClarify {
		// The photo description counts toward sufficiency: a sparse question
		// plus a clear scene photo can still be answerable.
		clarifyInput := question
		if imageAnalysis != "" {
			clarifyInput = question + "\n사진 분석 결과: " + imageAnalysis
		}
		clarification, err := adv.Clarify(cmd.Context(), clarifyInput)
		if err != nil {
			return err
		}
		if !clarification.Sufficient {
			fmt.Println("상담을 위해 추가 정보가 필요합니다:")
			fmt.Println(clarification.Questions)
			return nil
		}
	}

	answer, err := adv.AskWithImage(cmd.Context(), session, question, imageAnalysis, mode)
	if err != nil {
		// The answer still carries the user-safe message.
		fmt.Println(answer.Text)
		return err
	}

	printAnswer(answer)
	return nil
}

func llmConfig() llm.Config {
	llmCfg := llm.DefaultConfig(cfg.APIKey)
	llmCfg.Model = cfg.Model
	llmCfg.Temperature = cfg.Temperature
	llmCfg.MaxOutputTokens = cfg.MaxOutputTokens
	llmCfg.RequestsPerMinute = cfg.RequestsPerMinute
	return llmCfg
}

func describeImage(cmd *cobra.Command, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	analyzer, err := llm.NewVisionAnalyzer(cfg.APIKey, cfg.VisionModel)
	if err != nil {
		return "", err
	}
	return analyzer.Describe(cmd.Context(), data, mimeType)
}

func printAnswer(answer advisor.Answer) {
	fmt.Println(answer.Text)

	switch answer.Kind {
	case retrieval.Degraded:
		fmt.Println("\n※ 사례 검색이 제한되어 키워드 기반으로 유사 사례를 찾았습니다.")
	case retrieval.NoRetrieval:
		fmt.Println("\n※ 사례 검색을 사용할 수 없어 일반적인 안내만 제공되었습니다.")
	}

	if len(answer.Evidence) > 0 {
		fmt.Println("\n참고 사례:")
		for _, ev := range answer.Evidence {
			if ev.FaultRatio != "" {
				fmt.Printf("  - %s (과실 비율 %s)\n", ev.CaseID, ev.FaultRatio)
			} else {
				fmt.Printf("  - %s\n", ev.CaseID)
			}
		}
	}
}
