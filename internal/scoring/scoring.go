// Package scoring computes the importance of an exchange at insert time.
package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/rcliao/companion-brain/internal/model"
)

const (
	baseScore      = 0.3
	lengthCap      = 1000
	lengthWeight   = 0.2
	touchBonus     = 0.2
	earlyBonus     = 0.3
	earlyOrdinal   = 5
	recentBonus    = 0.1
	recentOrdinal  = 10
	keywordBonus   = 0.2
	unknownEmotion = 0.1
)

// Keywords mark exchanges worth remembering.
var Keywords = []string{
	"like", "hate", "important", "remember", "forget", "name",
	"birthday", "family", "friend", "work", "study", "dream", "goal",
}

var emotionWeights = map[string]float64{
	model.MoodExcited:   0.4,
	model.MoodHappy:     0.3,
	model.MoodAngry:     0.3,
	model.MoodSurprised: 0.3,
	model.MoodSad:       0.2,
	model.MoodNeutral:   0.1,
}

// Input is everything the scorer looks at.
type Input struct {
	UserText  string
	AgentText string
	Mood      string
	Touch     bool
	Ordinal   int // 1-based interaction number within the session
}

// EmotionWeight returns the mood contribution.
func EmotionWeight(mood string) float64 {
	if w, ok := emotionWeights[mood]; ok {
		return w
	}
	return unknownEmotion
}

// HasKeyword reports whether either text mentions a keyword.
func HasKeyword(texts ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, k := range Keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

// Score returns the importance of an exchange in [0,1].
func Score(in Input) float64 {
	score := baseScore

	// length counts characters, not bytes
	length := min(utf8.RuneCountInString(in.UserText)+utf8.RuneCountInString(in.AgentText), lengthCap)
	score += float64(length) / lengthCap * lengthWeight

	score += EmotionWeight(in.Mood)

	if in.Touch {
		score += touchBonus
	}

	switch {
	case in.Ordinal <= earlyOrdinal:
		score += earlyBonus
	case in.Ordinal <= recentOrdinal:
		score += recentBonus
	}

	if HasKeyword(in.UserText, in.AgentText) {
		score += keywordBonus
	}

	return clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
