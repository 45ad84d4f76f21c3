package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"quizpath_backend/internal/config"
	"quizpath_backend/internal/util"
	"quizpath_backend/pkg/logger"
	"quizpath_backend/pkg/monitoring"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// NoAnswerFeedback is returned without invoking the judge when the student
// submitted nothing.
const NoAnswerFeedback = "No answer was provided."

// GradingErrorMarker prefixes feedback of answers whose grading failed after
// all retries, so callers can tell "scored 0" from "could not be scored".
const GradingErrorMarker = "[auto-grading-error]"

const judgeScale = 10.0

// JudgeItem is one piece of free text to grade: a whole open question, or a
// single text flag of an image-map question. Each item is judged on its own
// question/answer pair only.
type JudgeItem struct {
	QuestionID uint
	FlagID     string // empty for open questions
	Prompt     string // question stem shown to the student
	Reference  string
	Rubric     string
	Points     int
	Answer     string
}

// JudgeVerdict is the judge's outcome, rescaled to the item's point value.
// Failed marks a recoverable grading failure, never a low score.
type JudgeVerdict struct {
	Score    int
	Feedback string
	Failed   bool
}

// Judge grades free text. The lifecycle manager depends on this, not on the
// concrete LLM client, so tests inject doubles.
type Judge interface {
	GradeText(ctx context.Context, item JudgeItem) JudgeVerdict
	GradeTextWithRetry(ctx context.Context, item JudgeItem) JudgeVerdict
}

// completionClient is the slice of the OpenAI client the judge uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client completionClient
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: newOpenAIClient(cfg),
	}
}

func newOpenAIClient(cfg config.AIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// UpdateConfig swaps judge settings at runtime, used by the config watcher to
// rotate API keys or switch models without a restart.
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.APIKey != s.config.APIKey || cfg.BaseURL != s.config.BaseURL {
		s.client = newOpenAIClient(cfg)
	}
	s.config = cfg
}

func (s *AIService) snapshot() (config.AIConfig, completionClient) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.client
}

// judgePayload is the strict JSON object the judge must return.
type judgePayload struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

// GradeText runs a single judge pass for one item. Empty input short-circuits
// to a zero score without a judge call. Any invocation, parse, or validation
// failure is logged and reported as a recoverable failed verdict; it never
// propagates an error.
func (s *AIService) GradeText(ctx context.Context, item JudgeItem) JudgeVerdict {
	if strings.TrimSpace(item.Answer) == "" {
		return JudgeVerdict{Score: 0, Feedback: NoAnswerFeedback}
	}

	cfg, client := s.snapshot()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildJudgeUserPrompt(item)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return s.failVerdict(item, "judge call failed", err)
	}
	if len(resp.Choices) == 0 {
		return s.failVerdict(item, "judge returned no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	scaled, feedback, err := parseJudgeVerdict(raw)
	if err != nil {
		return s.failVerdict(item, "judge verdict rejected", err)
	}

	monitoring.JudgeCallsTotal.WithLabelValues("ok").Inc()
	return JudgeVerdict{
		Score:    rescaleScore(scaled, item.Points),
		Feedback: feedback,
	}
}

// GradeTextWithRetry re-attempts only on a failed verdict, a bounded number of
// times with a fixed delay. A well-formed low score is final.
func (s *AIService) GradeTextWithRetry(ctx context.Context, item JudgeItem) JudgeVerdict {
	cfg, _ := s.snapshot()
	delay := time.Duration(cfg.RetryDelayMS) * time.Millisecond
	var verdict JudgeVerdict
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		verdict = s.GradeText(ctx, item)
		if !verdict.Failed {
			return verdict
		}
		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return verdict
			}
		}
	}
	return verdict
}

func (s *AIService) failVerdict(item JudgeItem, msg string, err error) JudgeVerdict {
	monitoring.JudgeCallsTotal.WithLabelValues("failed").Inc()
	logger.Log.Warn(msg,
		zap.Uint("questionId", item.QuestionID),
		zap.String("flagId", item.FlagID),
		zap.String("answer", util.Truncate(item.Answer, 120)),
		zap.Error(err),
	)
	return JudgeVerdict{
		Score:    0,
		Feedback: "This answer could not be graded automatically.",
		Failed:   true,
	}
}

// parseJudgeVerdict enforces the strict {score, feedback} contract: score must
// be a number in [0, 10].
func parseJudgeVerdict(raw string) (float64, string, error) {
	var payload judgePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return 0, "", fmt.Errorf("parse judge response: %w", err)
	}
	if payload.Score == nil {
		return 0, "", fmt.Errorf("judge response missing score")
	}
	score := *payload.Score
	if math.IsNaN(score) || score < 0 || score > judgeScale {
		return 0, "", fmt.Errorf("judge score out of range: %v", score)
	}
	return score, payload.Feedback, nil
}

// rescaleScore maps the 0-10 judge scale onto the item's point value, rounding
// to the nearest integer.
func rescaleScore(score10 float64, points int) int {
	return int(math.Round(score10 * float64(points) / judgeScale))
}

func judgeSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a grading assistant for a quiz platform. ")
	sb.WriteString("Grade the student's answer against the question, judging semantic equivalence rather than exact wording. ")
	sb.WriteString("Score on a scale of 0 to 10, where 10 is a fully correct and complete answer and 0 is entirely wrong or off-topic.\n\n")
	sb.WriteString("Respond ONLY with a JSON object with these fields:\n")
	sb.WriteString(`{"score": <number 0 to 10>, "feedback": "<brief feedback for the student>"}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildJudgeUserPrompt(item JudgeItem) string {
	var sb strings.Builder
	sb.WriteString("QUESTION: " + item.Prompt + "\n\n")
	if item.Reference != "" {
		sb.WriteString("REFERENCE ANSWER (not shown to the student):\n" + item.Reference + "\n\n")
	}
	if item.Rubric != "" {
		sb.WriteString("GRADING RUBRIC:\n" + item.Rubric + "\n\n")
	}
	sb.WriteString("STUDENT ANSWER:\n" + item.Answer + "\n")
	return sb.String()
}
