package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/companion-brain/internal/model"
)

// MaxReplyChars caps the reply text the model is asked for.
const MaxReplyChars = 50

const maxMemoryDetails = 2

// ContextInfo carries turn state that is not a factor.
type ContextInfo struct {
	Touched bool
	Zone    string
}

type grouped map[string][]model.PromptFactor

// strongest returns the highest-weight factor of a category. Ties keep
// the earlier factor.
func (g grouped) strongest(category string) (model.PromptFactor, bool) {
	fs := g[category]
	if len(fs) == 0 {
		return model.PromptFactor{}, false
	}
	best := fs[0]
	for _, f := range fs[1:] {
		if f.Weight > best.Weight {
			best = f
		}
	}
	return best, true
}

func (g grouped) named(name string) (model.PromptFactor, bool) {
	return lo.Find(g[Category(name)], func(f model.PromptFactor) bool { return f.Name == name })
}

// BuildInteractionPrompt renders the per-turn prompt. At least one factor
// must be required. actions and expressions are the codes offered for this
// turn; info may be nil.
func BuildInteractionPrompt(factors []model.PromptFactor, actions []model.Action, expressions []model.Expression, info *ContextInfo) (string, error) {
	if !lo.SomeBy(factors, func(f model.PromptFactor) bool { return f.IsRequired }) {
		return "", model.Invalid("factors", "at least one required factor is needed")
	}

	sorted := make([]model.PromptFactor, len(factors))
	copy(sorted, factors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	g := grouped{}
	for _, f := range sorted {
		c := Category(f.Name)
		g[c] = append(g[c], f)
	}

	sections := []string{
		stateSection(g, info),
		inputSection(g),
		catalogSection(actions, expressions),
	}
	if mem := memorySection(g); mem != "" {
		sections = append(sections, mem)
	}
	sections = append(sections, requirementsSection(g))

	return postProcess(strings.Join(sections, "\n\n")), nil
}

func stateSection(g grouped, info *ContextInfo) string {
	lines := []string{"## Current interaction state"}
	if f, ok := g.strongest(CategoryEmotion); ok {
		lines = append(lines, "User emotion: "+f.Content)
	}
	if info != nil {
		if info.Touched {
			zone := info.Zone
			if zone == "" {
				zone = "unknown"
			}
			lines = append(lines,
				fmt.Sprintf("Touch: being touched gently (zone: %s)", zone),
				"Touch feeling: soothed and cared for")
		} else {
			lines = append(lines, "Touch: none")
		}
	}
	if f, ok := g.strongest(CategoryStage); ok {
		lines = append(lines, "Growth stage: "+f.Content)
	}
	if fs := g[CategoryPersonality]; len(fs) > 0 {
		parts := lo.Map(fs, func(f model.PromptFactor, _ int) string { return f.Content })
		lines = append(lines, "Personality: "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

func inputSection(g grouped) string {
	lines := []string{"## User input"}
	if f, ok := g.strongest(CategoryInput); ok && strings.TrimSpace(f.Content) != "" {
		lines = append(lines, "User said: "+f.Content)
	} else {
		lines = append(lines, "User said: (no text input)")
	}
	if f, ok := g.strongest(CategoryTouch); ok && strings.TrimSpace(f.Content) != "" {
		lines = append(lines, "Touch context: "+f.Content)
	}
	return strings.Join(lines, "\n")
}

func catalogSection(actions []model.Action, expressions []model.Expression) string {
	lines := []string{"## Available actions and expressions"}
	if len(actions) > 0 {
		parts := lo.Map(actions, func(a model.Action, _ int) string { return a.Code + ": " + a.Description })
		lines = append(lines, "Actions: "+strings.Join(parts, "; "))
	} else {
		lines = append(lines, "Actions: none")
	}
	if len(expressions) > 0 {
		parts := lo.Map(expressions, func(e model.Expression, _ int) string { return e.Code + ": " + e.Description })
		lines = append(lines, "Expressions: "+strings.Join(parts, "; "))
	} else {
		lines = append(lines, "Expressions: none")
	}
	return strings.Join(lines, "\n")
}

// memorySection is empty unless a memory factor with content exists.
func memorySection(g grouped) string {
	f, ok := g.named(model.FactorMemory)
	if !ok || strings.TrimSpace(f.Content) == "" {
		return ""
	}
	lines := []string{"## Memory reference", "Memory: " + f.Content}
	if c, ok := g.named(model.FactorMemoryContext); ok && c.Content != "" {
		lines = append(lines, "Conversation so far: "+c.Content)
	}
	if details, ok := f.Metadata["details"].([]model.MemoryRecord); ok && len(details) > 0 {
		lines = append(lines, "Recent exchanges:")
		for i, d := range details[:min(maxMemoryDetails, len(details))] {
			lines = append(lines,
				fmt.Sprintf("  %d. User: %s", i+1, d.UserText),
				fmt.Sprintf("     Robot: %s (mood: %s)", d.AgentText, d.MoodTag))
		}
	}
	return strings.Join(lines, "\n")
}

func requirementsSection(g grouped) string {
	lines := []string{"## Output requirements"}

	if f, ok := g.strongest(CategoryStage); ok {
		lines = append(lines, "1. "+model.ProfileFor(stageOf(f)).Instruction)
	} else {
		lines = append(lines, "1. Express yourself the way your current growth stage allows.")
	}

	if f, ok := g.named(model.FactorPersonality); ok {
		traits, _ := f.Metadata["dominant_traits"].([]string)
		if len(traits) > 0 {
			lines = append(lines, "2. Show your personality: "+strings.Join(traits, ", "))
		} else {
			lines = append(lines, "2. Show your personality: "+f.Content)
		}
	} else {
		lines = append(lines, "2. Show your own distinct personality.")
	}

	if f, ok := g.named(model.FactorMemory); ok && strings.TrimSpace(f.Content) != "" {
		lines = append(lines, "3. Weave the memories in naturally to make the reply personal.")
	} else {
		lines = append(lines, "3. Build a new memory connection for later conversations.")
	}

	if _, ok := g.strongest(CategoryTouch); ok {
		lines = append(lines, `4. Respond to the touch without describing it. Output only interjections such as "mm~" or "ah~" together with action and expression codes such as A112 and E025.`)
	} else {
		lines = append(lines, "4. Keep a natural conversational style with an emotional connection.")
	}

	lines = append(lines,
		fmt.Sprintf("5. Be natural and concise, no more than %d characters.", MaxReplyChars),
		"6. Output only a JSON object with exactly four fields: text, emotion, action (array of codes), expression.",
		"7. Action codes: A000-A025 for emotions, A100-A114 for touch and intimacy.",
		"8. Expression codes: E000-E012 for emotions, E013-E027 for touch and intimacy.",
	)
	return strings.Join(lines, "\n")
}

func stageOf(f model.PromptFactor) model.GrowthStage {
	if s, ok := f.Metadata["stage"].(model.GrowthStage); ok {
		return s
	}
	for _, p := range model.Stages {
		if strings.Contains(f.Content, string(p.Stage)) {
			return p.Stage
		}
	}
	return model.DefaultStage
}

// postProcess drops repeated lines and collapses runs of blank lines.
func postProcess(s string) string {
	seen := map[string]bool{}
	var out []string
	prevBlank := false
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			if !prevBlank && len(out) > 0 {
				out = append(out, "")
			}
			prevBlank = true
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, line)
		prevBlank = false
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}
