package grading

import (
	"encoding/json"
	"math"
	"strings"

	"quizpath_backend/internal/model"
)

// Result is the outcome of the immediate (deterministic) grading of one answer.
// Score is the deterministic portion; PendingFlags lists judge work whose
// points are tracked in PendingMax so attempt totals stay consistent once the
// judge finishes.
type Result struct {
	IsCorrect    bool
	Score        int
	MaxScore     int
	PendingMax   int
	PendingFlags []PendingFlag
}

// PendingFlag identifies one piece of free text awaiting the judge: the whole
// answer of an open question, or a single text flag of an image-map answer.
type PendingFlag struct {
	FlagID    string // empty for open questions
	Label     string
	Reference string
	Points    int
	Answer    string
}

// GradeImmediate dispatches on question type and grades the deterministic
// portion of one raw answer. Pure: no side effects, never errors; malformed
// answers and malformed config both score 0.
func GradeImmediate(q *model.Question, raw json.RawMessage) Result {
	if !q.HasCorrectAnswer {
		return Result{}
	}
	switch q.QuestionType {
	case model.QuestionChoice:
		return gradeChoice(q, raw)
	case model.QuestionSlider:
		return gradeSlider(q, raw)
	case model.QuestionImageMap:
		return gradeImageMap(q, raw)
	case model.QuestionOpen:
		return gradeOpen(q, raw)
	default:
		return Result{}
	}
}

// gradeChoice compares the single selected choice id with the stored correct
// value, exact string match. Multi-correct questions store a comma-joined set;
// a single selection never equals that form, so it grades incorrect.
func gradeChoice(q *model.Question, raw json.RawMessage) Result {
	res := Result{MaxScore: q.Points}
	selected, ok := decodeString(raw)
	if !ok || selected == "" {
		return res
	}
	if strings.TrimSpace(selected) == strings.TrimSpace(q.CorrectAnswer) {
		res.IsCorrect = true
		res.Score = q.Points
	}
	return res
}

func gradeSlider(q *model.Question, raw json.RawMessage) Result {
	res := Result{MaxScore: q.Points}
	cfg, ok := ParseSliderConfig(q.SliderConfig)
	if !ok {
		return res
	}
	value, ok := decodeNumber(raw)
	if !ok {
		return res
	}
	if math.Abs(value-cfg.CorrectValue) <= cfg.Tolerance {
		res.IsCorrect = true
		res.Score = q.Points
	}
	return res
}

// gradeOpen defers everything to the judge: the immediate score is 0 and the
// full point value is pending.
func gradeOpen(q *model.Question, raw json.RawMessage) Result {
	answer, _ := decodeString(raw)
	return Result{
		PendingMax: q.Points,
		PendingFlags: []PendingFlag{{
			Label:     q.Title,
			Reference: q.ReferenceAnswer,
			Points:    q.Points,
			Answer:    answer,
		}},
	}
}

// gradeImageMap grades choice/slider flags immediately and defers text flags.
// The raw answer is a JSON object mapping flag id to the flag's sub-answer.
func gradeImageMap(q *model.Question, raw json.RawMessage) Result {
	cfg, ok := ParseImageMapConfig(q.ImageMapConfig)
	if !ok {
		return Result{}
	}

	var subAnswers map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &subAnswers); err != nil {
			subAnswers = nil
		}
	}

	var res Result
	allCorrect := true
	for _, flag := range cfg.Flags {
		sub := subAnswers[flag.ID]
		switch flag.FlagType {
		case FlagChoice:
			res.MaxScore += flag.Points
			// a flag without an answer key can never be correct
			key := strings.TrimSpace(flag.CorrectAnswer)
			if selected, ok := decodeString(sub); ok && key != "" &&
				strings.TrimSpace(selected) == key {
				res.Score += flag.Points
			} else {
				allCorrect = false
			}
		case FlagSlider:
			res.MaxScore += flag.Points
			correct := false
			if flag.Slider != nil {
				if value, ok := decodeNumber(sub); ok {
					correct = math.Abs(value-flag.Slider.CorrectValue) <= flag.Slider.Tolerance
				}
			}
			if correct {
				res.Score += flag.Points
			} else {
				allCorrect = false
			}
		case FlagText:
			answer, _ := decodeString(sub)
			res.PendingMax += flag.Points
			res.PendingFlags = append(res.PendingFlags, PendingFlag{
				FlagID:    flag.ID,
				Label:     flag.Label,
				Reference: flag.CorrectAnswer,
				Points:    flag.Points,
				Answer:    answer,
			})
		}
	}
	res.IsCorrect = allCorrect && res.MaxScore > 0 && res.Score == res.MaxScore
	return res
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
