package grading

import (
	"encoding/json"
	"testing"

	"quizpath_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceQuestion(correct string, points int) *model.Question {
	return &model.Question{
		QuestionType:     model.QuestionChoice,
		Options:          json.RawMessage(`[{"id":"a","text":"Paris"},{"id":"b","text":"Lyon"}]`),
		CorrectAnswer:    correct,
		Points:           points,
		HasCorrectAnswer: true,
	}
}

func TestGradeChoice(t *testing.T) {
	q := choiceQuestion("a", 2)

	t.Run("exact match scores full points", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`"a"`))
		assert.True(t, res.IsCorrect)
		assert.Equal(t, 2, res.Score)
		assert.Equal(t, 2, res.MaxScore)
		assert.Empty(t, res.PendingFlags)
	})

	t.Run("wrong selection scores zero", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`"b"`))
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, 2, res.MaxScore)
	})

	t.Run("missing answer scores zero", func(t *testing.T) {
		res := GradeImmediate(q, nil)
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
	})

	t.Run("single selection never matches a multi-correct key", func(t *testing.T) {
		multi := choiceQuestion("a,b", 2)
		res := GradeImmediate(multi, json.RawMessage(`"a"`))
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
	})

	t.Run("malformed answer payload scores zero", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`{"not":"a string"}`))
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
	})
}

func sliderQuestion(correct, tolerance float64, points int) *model.Question {
	cfg, _ := json.Marshal(SliderConfig{Min: 0, Max: 100, Step: 1, CorrectValue: correct, Tolerance: tolerance})
	return &model.Question{
		QuestionType:     model.QuestionSlider,
		SliderConfig:     cfg,
		Points:           points,
		HasCorrectAnswer: true,
	}
}

func TestGradeSlider(t *testing.T) {
	q := sliderQuestion(50, 5, 3)

	t.Run("within tolerance", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`47`))
		assert.True(t, res.IsCorrect)
		assert.Equal(t, 3, res.Score)
	})

	t.Run("exactly on the tolerance boundary counts", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`55`))
		assert.True(t, res.IsCorrect)
		assert.Equal(t, 3, res.Score)
	})

	t.Run("outside tolerance", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`56`))
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, 3, res.MaxScore)
	})

	t.Run("malformed config fails closed", func(t *testing.T) {
		bad := &model.Question{
			QuestionType:     model.QuestionSlider,
			SliderConfig:     json.RawMessage(`not json`),
			Points:           3,
			HasCorrectAnswer: true,
		}
		res := GradeImmediate(bad, json.RawMessage(`50`))
		assert.False(t, res.IsCorrect)
		assert.Equal(t, 0, res.Score)
	})
}

func TestGradeOpenDefersEverything(t *testing.T) {
	q := &model.Question{
		QuestionType:     model.QuestionOpen,
		Title:            "Explain recursion",
		ReferenceAnswer:  "A function calling itself",
		Points:           3,
		HasCorrectAnswer: true,
	}
	res := GradeImmediate(q, json.RawMessage(`"it calls itself"`))
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.MaxScore)
	assert.Equal(t, 3, res.PendingMax)
	require.Len(t, res.PendingFlags, 1)
	assert.Equal(t, "it calls itself", res.PendingFlags[0].Answer)
	assert.Equal(t, "A function calling itself", res.PendingFlags[0].Reference)
	assert.Equal(t, 3, res.PendingFlags[0].Points)
}

func imageMapQuestion(t *testing.T) *model.Question {
	t.Helper()
	cfg := ImageMapConfig{
		BaseImageURL: "/uploads/images/heart.png",
		Flags: []ImageMapFlag{
			{ID: "f1", FlagType: FlagChoice, Label: "Chamber", Points: 1, CorrectAnswer: "left",
				Options: []ChoiceOption{{ID: "left"}, {ID: "right"}}},
			{ID: "f2", FlagType: FlagSlider, Label: "Rate", Points: 2,
				Slider: &SliderConfig{CorrectValue: 70, Tolerance: 10}},
			{ID: "f3", FlagType: FlagText, Label: "Function", Points: 2, CorrectAnswer: "pumps blood"},
		},
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &model.Question{
		QuestionType:     model.QuestionImageMap,
		ImageMapConfig:   raw,
		Points:           5,
		HasCorrectAnswer: true,
	}
}

func TestGradeImageMap(t *testing.T) {
	q := imageMapQuestion(t)

	t.Run("mixed flags split immediate and pending", func(t *testing.T) {
		answer := json.RawMessage(`{"f1":"left","f2":65,"f3":"it pumps blood"}`)
		res := GradeImmediate(q, answer)
		assert.Equal(t, 3, res.Score)
		assert.Equal(t, 3, res.MaxScore)
		assert.Equal(t, 2, res.PendingMax)
		require.Len(t, res.PendingFlags, 1)
		assert.Equal(t, "f3", res.PendingFlags[0].FlagID)
		assert.Equal(t, "it pumps blood", res.PendingFlags[0].Answer)
		assert.True(t, res.IsCorrect)
	})

	t.Run("one wrong deterministic flag clears IsCorrect", func(t *testing.T) {
		answer := json.RawMessage(`{"f1":"right","f2":65,"f3":"beats"}`)
		res := GradeImmediate(q, answer)
		assert.Equal(t, 2, res.Score)
		assert.False(t, res.IsCorrect)
	})

	t.Run("missing sub-answers score zero but text flag still pends", func(t *testing.T) {
		res := GradeImmediate(q, json.RawMessage(`{}`))
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, 3, res.MaxScore)
		require.Len(t, res.PendingFlags, 1)
		assert.Equal(t, "", res.PendingFlags[0].Answer)
	})

	t.Run("choice flag without an answer key never matches", func(t *testing.T) {
		cfg := ImageMapConfig{
			BaseImageURL: "/uploads/images/heart.png",
			Flags: []ImageMapFlag{
				{ID: "f1", FlagType: FlagChoice, Label: "Chamber", Points: 1,
					Options: []ChoiceOption{{ID: "left"}, {ID: "right"}}},
			},
		}
		raw, err := json.Marshal(cfg)
		require.NoError(t, err)
		keyless := &model.Question{
			QuestionType:     model.QuestionImageMap,
			ImageMapConfig:   raw,
			Points:           1,
			HasCorrectAnswer: true,
		}
		res := GradeImmediate(keyless, json.RawMessage(`{"f1":"  "}`))
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, 1, res.MaxScore)
		assert.False(t, res.IsCorrect)
	})

	t.Run("malformed config fails closed", func(t *testing.T) {
		bad := &model.Question{
			QuestionType:     model.QuestionImageMap,
			ImageMapConfig:   json.RawMessage(`[`),
			Points:           5,
			HasCorrectAnswer: true,
		}
		res := GradeImmediate(bad, json.RawMessage(`{"f1":"left"}`))
		assert.Equal(t, Result{}, res)
	})
}

func TestSurveyQuestionNeverScored(t *testing.T) {
	q := choiceQuestion("a", 2)
	q.HasCorrectAnswer = false
	res := GradeImmediate(q, json.RawMessage(`"a"`))
	assert.Equal(t, Result{}, res)
}
