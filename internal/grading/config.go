package grading

import "encoding/json"

// ChoiceOption is one selectable choice of a choice question or choice flag.
type ChoiceOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SliderConfig is the scoring config of a slider question or slider flag.
// Correctness is |value - CorrectValue| <= Tolerance, inclusive.
type SliderConfig struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Step         float64 `json:"step"`
	CorrectValue float64 `json:"correctValue"`
	Tolerance    float64 `json:"tolerance"`
}

type FlagType string

const (
	FlagText   FlagType = "text"
	FlagChoice FlagType = "choice"
	FlagSlider FlagType = "slider"
)

// ImageMapFlag is an independently scored sub-question anchored to a point on
// the base image. Choice and slider flags are graded immediately; text flags go
// to the judge.
type ImageMapFlag struct {
	ID            string         `json:"id"`
	FlagType      FlagType       `json:"flagType"`
	Label         string         `json:"label"`
	Points        int            `json:"points"`
	Options       []ChoiceOption `json:"options,omitempty"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"` // choice id, or reference text for text flags
	Slider        *SliderConfig  `json:"slider,omitempty"`
}

type ImageMapConfig struct {
	BaseImageURL string         `json:"baseImageUrl"`
	Flags        []ImageMapFlag `json:"flags"`
}

// ParseSliderConfig returns the typed config, or ok=false when the blob is
// missing or malformed. Callers fail closed on !ok.
func ParseSliderConfig(raw json.RawMessage) (SliderConfig, bool) {
	var cfg SliderConfig
	if len(raw) == 0 {
		return cfg, false
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return SliderConfig{}, false
	}
	return cfg, true
}

func ParseImageMapConfig(raw json.RawMessage) (ImageMapConfig, bool) {
	var cfg ImageMapConfig
	if len(raw) == 0 {
		return cfg, false
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ImageMapConfig{}, false
	}
	return cfg, len(cfg.Flags) > 0
}

func ParseChoiceOptions(raw json.RawMessage) ([]ChoiceOption, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var opts []ChoiceOption
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, false
	}
	return opts, true
}
