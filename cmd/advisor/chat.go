package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accidentadvisor/internal/advisor"
	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/llm"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive consultation session",
	Long: `Runs a multi-turn consultation in the terminal. The session keeps a
bounded window of recent exchanges as context for follow-up questions.

Commands inside the session:
  /mode quick|detailed   switch answer mode
  /followup              suggest follow-up questions for the conversation
  /clear                 forget the conversation so far
  /exit                  leave the session`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := llm.NewGeminiClient(llmConfig())
	if err != nil {
		return err
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

	// Flag corpus edits during the session so the user knows the index is
	// behind. Watching is best-effort; without it the session still works.
	watcher, err := corpus.NewWatcher(cfg.CorpusPath)
	if err == nil {
		// A failed Start releases the watcher's handles itself.
		if err := watcher.Start(cmd.Context()); err == nil {
			defer watcher.Stop()
		} else {
			logger.Debug("corpus watcher unavailable", zap.Error(err))
			watcher = nil
		}
	} else {
		logger.Debug("corpus watcher unavailable", zap.Error(err))
		watcher = nil
	}

	adv := advisor.New(orchestrator, client)
	session := advisor.NewSession(cfg.ConversationWindow)
	mode := advisor.ModeQuickDiagnosis
	modeExplicit := false

	fmt.Println("교통사고 과실 비율 상담을 시작합니다. (/exit 로 종료)")
	fmt.Println("답변은 참고용이며 법적 효력이 없습니다.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n질문> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if done := handleCommand(cmd, adv, session, input, &mode, &modeExplicit); done {
				break
			}
			continue
		}

		if watcher != nil && watcher.Stale() {
			fmt.Println("※ 사례 파일이 변경되었습니다. 'advisor index'로 색인을 다시 만들면 최신 사례가 반영됩니다.")
			watcher.Reset()
		}

		clarification, err := adv.Clarify(cmd.Context(), input)
		if err == nil && !clarification.Sufficient {
			fmt.Println("\n상담을 위해 추가 정보가 필요합니다:")
			fmt.Println(clarification.Questions)
			continue
		}

		activeMode := mode
		if !modeExplicit {
			activeMode = advisor.ClassifyMode(input)
		}

		answer, err := adv.Ask(cmd.Context(), session, input, activeMode)
		if err != nil {
			fmt.Println("\n" + answer.Text)
			logger.Warn("answer failed", zap.Error(err))
			continue
		}
		fmt.Println()
		printAnswer(answer)
	}

	return scanner.Err()
}

// handleCommand processes a /command. Returns true when the session should
// end.
func handleCommand(cmd *cobra.Command, adv *advisor.Advisor, session *advisor.Session, input string, mode *advisor.Mode, modeExplicit *bool) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		fmt.Println("상담을 종료합니다.")
		return true

	case "/clear":
		session.Clear()
		fmt.Println("대화 내용을 초기화했습니다.")

	case "/mode":
		if len(fields) < 2 {
			fmt.Printf("현재 모드: %s\n", *mode)
			break
		}
		switch fields[1] {
		case "quick":
			*mode = advisor.ModeQuickDiagnosis
		case "detailed":
			*mode = advisor.ModeDetailedAnalysis
		default:
			fmt.Println("사용법: /mode quick|detailed")
			return false
		}
		*modeExplicit = true
		fmt.Printf("모드를 변경했습니다: %s\n", *mode)

	case "/followup":
		history := session.History()
		if len(history) == 0 {
			fmt.Println("먼저 질문을 해주세요.")
			break
		}
		last := history[len(history)-1]
		answer, err := adv.Ask(cmd.Context(), session, last.User, advisor.ModeFollowUpQuestions)
		if err != nil {
			fmt.Println(answer.Text)
			break
		}
		fmt.Println(answer.Text)

	default:
		fmt.Println("알 수 없는 명령입니다. (/mode, /followup, /clear, /exit)")
	}
	return false
}
