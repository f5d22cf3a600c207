package model

// Factor names produced by the standard factor builder.
const (
	FactorGrowthStage      = "growth_stage"
	FactorPersonality      = "personality"
	FactorPersonalityStyle = "personality_style"
	FactorUserEmotion      = "user_emotion"
	FactorTouch            = "touch_interaction"
	FactorMemory           = "memory"
	FactorMemoryContext    = "memory_context"
	FactorMemoryStats      = "memory_stats"
	FactorUserInput        = "user_input"
)

// PromptFactor is one typed input to prompt construction.
type PromptFactor struct {
	Name       string
	Content    string
	Weight     float64
	Priority   int
	IsRequired bool
	Metadata   map[string]any
}

// GrowthStage is a coarse maturity label gating language complexity.
type GrowthStage string

const (
	StageSprout    GrowthStage = "sprout"
	StageEnlighten GrowthStage = "enlighten"
	StageResonate  GrowthStage = "resonate"
	StageAwaken    GrowthStage = "awaken"
)

// DefaultStage is used when no stage can be determined.
const DefaultStage = StageEnlighten

// StageProfile describes the behavior expected at a growth stage.
type StageProfile struct {
	Stage         GrowthStage
	Description   string
	Language      string
	Communication string
	Emotion       string
	Interaction   string
	MemoryUse     string
	Instruction   string
}

// Stages lists every growth stage in order of maturity.
var Stages = []StageProfile{
	{
		Stage:         StageSprout,
		Description:   "sprout stage: babbles and responds with simple actions",
		Language:      "babble sounds only",
		Communication: "sounds and body movement",
		Emotion:       "basic emotions through actions",
		Interaction:   "reacts to touch and voice",
		MemoryUse:     "none",
		Instruction:   "Reply with short babble sounds only, like \"ya-ya\" or \"mm\".",
	},
	{
		Stage:         StageEnlighten,
		Description:   "enlighten stage: imitates short greetings and simple words",
		Language:      "single words and short greetings",
		Communication: "imitation of simple phrases",
		Emotion:       "simple emotional words",
		Interaction:   "greets and imitates",
		MemoryUse:     "recognizes familiar people",
		Instruction:   "Reply with a short greeting or a few simple words.",
	},
	{
		Stage:         StageResonate,
		Description:   "resonate stage: caring short sentences and simple questions",
		Language:      "short complete sentences",
		Communication: "caring questions and answers",
		Emotion:       "empathy and concern",
		Interaction:   "asks simple questions",
		MemoryUse:     "refers to recent conversations",
		Instruction:   "Reply with one caring short sentence, optionally a simple question.",
	},
	{
		Stage:         StageAwaken,
		Description:   "awaken stage: full dialogue with proactive suggestions drawn from memory",
		Language:      "natural fluent dialogue",
		Communication: "proactive suggestions",
		Emotion:       "rich and nuanced",
		Interaction:   "full conversation",
		MemoryUse:     "recalls shared history to personalize replies",
		Instruction:   "Reply naturally and, when it fits, make a suggestion based on shared memories.",
	},
}

// ProfileFor returns the profile of stage, or the default stage profile.
func ProfileFor(stage GrowthStage) StageProfile {
	for _, p := range Stages {
		if p.Stage == stage {
			return p
		}
	}
	for _, p := range Stages {
		if p.Stage == DefaultStage {
			return p
		}
	}
	return Stages[0]
}

// ValidStage reports whether s names a known stage.
func ValidStage(s string) bool {
	for _, p := range Stages {
		if string(p.Stage) == s {
			return true
		}
	}
	return false
}
