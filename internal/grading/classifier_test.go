package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		maxScore int
		want     Level
	}{
		{"exactly 80 percent is advanced", 80, 100, LevelAdvanced},
		{"just below 80 percent is intermediate", 79, 100, LevelIntermediate},
		{"exactly 50 percent is intermediate", 50, 100, LevelIntermediate},
		{"just below 50 percent is beginner", 49, 100, LevelBeginner},
		{"full marks", 10, 10, LevelAdvanced},
		{"zero score", 0, 100, LevelBeginner},
		{"four of five is advanced", 4, 5, LevelAdvanced},
		{"two of three is intermediate", 2, 3, LevelIntermediate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.score, tt.maxScore))
		})
	}
}

func TestClassifyZeroMaxScore(t *testing.T) {
	assert.Equal(t, LevelBeginner, Classify(0, 0))
	assert.Equal(t, LevelBeginner, Classify(5, 0))
}
