package persona

import (
	"time"

	"github.com/rcliao/companion-brain/internal/model"
)

// StageThreshold is the minimum data a robot needs to leave a stage.
type StageThreshold struct {
	Stage        model.GrowthStage
	Days         int
	Interactions int
	AudioSeconds float64
}

// StageThresholds are checked in order. A robot stays in the first stage
// whose threshold it has not fully met.
var StageThresholds = []StageThreshold{
	{model.StageSprout, 3, 5, 60},
	{model.StageEnlighten, 10, 20, 300},
	{model.StageResonate, 30, 50, 900},
}

// StageFor returns the growth stage for the given accumulated data.
func StageFor(days, interactions int, audioSeconds float64) model.GrowthStage {
	for _, t := range StageThresholds {
		if days < t.Days || interactions < t.Interactions || audioSeconds < t.AudioSeconds {
			return t.Stage
		}
	}
	return model.StageAwaken
}

// DaysSince counts whole days from first to now. A zero first counts as day 0.
func DaysSince(first, now time.Time) int {
	if first.IsZero() || now.Before(first) {
		return 0
	}
	return int(now.Sub(first) / (24 * time.Hour))
}
