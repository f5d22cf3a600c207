package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/rcliao/companion-brain/internal/model"
)

//go:embed templates/system.tmpl
var systemTemplate string

var systemTmpl = template.Must(template.New("system").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(systemTemplate))

// Identity describes the robot for the system prompt.
type Identity struct {
	RobotID      string
	Role         string
	Capabilities []string
}

// PersonalityInfo is the personality echo of the system prompt.
type PersonalityInfo struct {
	Style  string
	Traits []string
}

type emotionRow struct {
	Mood       string
	Actions    []string
	Expression string
}

type systemData struct {
	Identity
	SessionID     string
	MaxReplyChars int
	Stage         model.GrowthStage
	Stages        []model.StageProfile
	Style         string
	Traits        []string
	MemoryCount   int
	Actions       []model.Action
	Expressions   []model.Expression
	EmotionMap    []emotionRow
}

// BuildSystemPrompt renders the static system prompt. It takes no per-turn
// user text, emotion or memory content, so none can leak into it.
func BuildSystemPrompt(id Identity, stage model.GrowthStage, p PersonalityInfo, memoryCount int, sessionID string) (string, error) {
	if id.RobotID == "" {
		return "", model.Invalid("robot_id", "robot id is required")
	}
	if id.Role == "" {
		id.Role = "a companion robot that grows up alongside its owner"
	}
	if !model.ValidStage(string(stage)) {
		stage = model.DefaultStage
	}
	if p.Style == "" {
		p.Style = "neutral"
	}

	rows := make([]emotionRow, 0, len(model.EmotionCodeKeys))
	for _, k := range model.EmotionCodeKeys {
		c := model.EmotionCodes[k]
		rows = append(rows, emotionRow{Mood: k, Actions: c.Actions, Expression: c.Expression})
	}

	var buf bytes.Buffer
	err := systemTmpl.Execute(&buf, systemData{
		Identity:      id,
		SessionID:     sessionID,
		MaxReplyChars: MaxReplyChars,
		Stage:         stage,
		Stages:        model.Stages,
		Style:         p.Style,
		Traits:        p.Traits,
		MemoryCount:   memoryCount,
		Actions:       model.Actions,
		Expressions:   model.Expressions,
		EmotionMap:    rows,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}
