package grading

// Level is the three-tier classification of a score ratio.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Tier boundaries as percentages, inclusive on the lower bound.
const (
	AdvancedThreshold     = 80.0
	IntermediateThreshold = 50.0
)

// Classify maps score/maxScore to a level. maxScore 0 is defined as beginner
// so empty assignments never divide by zero.
func Classify(score, maxScore int) Level {
	if maxScore == 0 {
		return LevelBeginner
	}
	percentage := 100 * float64(score) / float64(maxScore)
	switch {
	case percentage >= AdvancedThreshold:
		return LevelAdvanced
	case percentage >= IntermediateThreshold:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}
