// Package prompt turns typed prompt factors into the per-turn interaction
// prompt and the static system prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/rcliao/companion-brain/internal/model"
)

// Factor categories used to group factors into sections.
const (
	CategoryStage       = "stage"
	CategoryPersonality = "personality"
	CategoryEmotion     = "emotion"
	CategoryTouch       = "touch"
	CategoryMemory      = "memory"
	CategoryInput       = "input"
)

var categories = map[string]string{
	model.FactorGrowthStage:      CategoryStage,
	model.FactorPersonality:      CategoryPersonality,
	model.FactorPersonalityStyle: CategoryPersonality,
	model.FactorUserEmotion:      CategoryEmotion,
	model.FactorTouch:            CategoryTouch,
	model.FactorMemory:           CategoryMemory,
	model.FactorMemoryContext:    CategoryMemory,
	model.FactorMemoryStats:      CategoryMemory,
	model.FactorUserInput:        CategoryInput,
}

// Category returns the section category of a factor name. Unknown names
// fall back to the part before the first underscore.
func Category(name string) string {
	if c, ok := categories[name]; ok {
		return c
	}
	prefix, _, _ := strings.Cut(name, "_")
	return prefix
}

// FactorInput is everything the standard factor set is built from.
type FactorInput struct {
	Stage          model.GrowthStage
	TraitSummary   string
	DominantTraits []string
	Style          string
	Mood           string
	// TouchContent describes the current touch. Empty means no touch.
	TouchContent   string
	Memory         *model.FusionResult
	ContextSummary string
	SessionID      string
	UserText       string
}

// BuildFactors returns the standard factors for one turn. growth_stage is
// always present; user_input only when the user said something.
func BuildFactors(in FactorInput) []model.PromptFactor {
	stage := in.Stage
	if !model.ValidStage(string(stage)) {
		stage = model.DefaultStage
	}
	profile := model.ProfileFor(stage)

	factors := []model.PromptFactor{{
		Name:       model.FactorGrowthStage,
		Content:    profile.Description,
		Weight:     1.5,
		Priority:   5,
		IsRequired: true,
		Metadata:   map[string]any{"stage": stage},
	}}

	if in.TraitSummary != "" {
		factors = append(factors, model.PromptFactor{
			Name:     model.FactorPersonality,
			Content:  in.TraitSummary,
			Weight:   1.2,
			Priority: 4,
			Metadata: map[string]any{"dominant_traits": in.DominantTraits},
		})
	}
	if in.Style != "" {
		factors = append(factors, model.PromptFactor{
			Name:     model.FactorPersonalityStyle,
			Content:  in.Style + " speaking style",
			Weight:   1.0,
			Priority: 3,
		})
	}
	if in.Mood != "" {
		factors = append(factors, model.PromptFactor{
			Name:     model.FactorUserEmotion,
			Content:  in.Mood,
			Weight:   1.0,
			Priority: 3,
		})
	}
	if strings.TrimSpace(in.TouchContent) != "" {
		factors = append(factors, model.PromptFactor{
			Name:     model.FactorTouch,
			Content:  in.TouchContent,
			Weight:   0.8,
			Priority: 2,
		})
	}

	if in.Memory != nil {
		if in.Memory.Summary != "" {
			factors = append(factors, model.PromptFactor{
				Name:     model.FactorMemory,
				Content:  in.Memory.Summary,
				Weight:   0.6,
				Priority: 1,
				Metadata: map[string]any{
					"details":    in.Memory.Records,
					"count":      in.Memory.Count,
					"session_id": in.SessionID,
				},
			})
		}
		if in.ContextSummary != "" {
			factors = append(factors, model.PromptFactor{
				Name:     model.FactorMemoryContext,
				Content:  in.ContextSummary,
				Weight:   0.5,
				Priority: 1,
			})
		}
		factors = append(factors, model.PromptFactor{
			Name:     model.FactorMemoryStats,
			Content:  fmt.Sprintf("Memory record count: %d", in.Memory.Count),
			Weight:   0.3,
			Priority: 0,
		})
	}

	if strings.TrimSpace(in.UserText) != "" {
		factors = append(factors, model.PromptFactor{
			Name:       model.FactorUserInput,
			Content:    in.UserText,
			Weight:     2.0,
			Priority:   6,
			IsRequired: true,
		})
	}
	return factors
}
