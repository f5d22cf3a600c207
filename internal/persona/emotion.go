package persona

import (
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/companion-brain/internal/model"
)

// Perception keyword lists, checked in order. The first list with a hit
// decides the mood.
var perceptionRules = []struct {
	mood  string
	words []string
}{
	{model.MoodHappy, []string{"happy", "great", "love", "good", "excited", "glad"}},
	{model.MoodSad, []string{"angry", "hate", "bad", "sad", "upset"}},
	{model.MoodSurprised, []string{"wow", "surprised", "shocked", "unexpected", "really?"}},
	{model.MoodAngry, []string{"furious", "annoyed", "mad"}},
	{model.MoodExcited, []string{"thrilled", "awesome", "amazing", "can't wait"}},
}

// Perceive classifies text into a mood tag. Text with no cue is neutral.
func Perceive(text string) string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return model.MoodNeutral
	}
	for _, r := range perceptionRules {
		if lo.SomeBy(r.words, func(w string) bool { return strings.Contains(lower, w) }) {
			return r.mood
		}
	}
	return model.MoodNeutral
}
