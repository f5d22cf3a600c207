// Package dialogue runs one conversational turn end to end: memory, prompts,
// the language model, speech and the fallback when any of them fails.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rcliao/companion-brain/internal/config"
	"github.com/rcliao/companion-brain/internal/fusion"
	"github.com/rcliao/companion-brain/internal/llm"
	"github.com/rcliao/companion-brain/internal/model"
	"github.com/rcliao/companion-brain/internal/persona"
	"github.com/rcliao/companion-brain/internal/prompt"
	"github.com/rcliao/companion-brain/internal/tts"
)

// Memory is the memory system a turn reads and writes.
type Memory interface {
	StartSession(ctx context.Context, ownerID, sessionID string) (string, error)
	Add(ctx context.Context, in fusion.Interaction) (model.MemoryRecord, error)
	Query(ctx context.Context, p fusion.QueryParams) (*model.FusionResult, error)
	Summary(sessionID string) string
	History(ctx context.Context, sessionID string) []model.Message
	Progress(ctx context.Context, ownerID string) (fusion.Progress, error)
}

// Config tunes the engine.
type Config struct {
	// AllowedIDs is the robot whitelist. Empty allows every robot.
	AllowedIDs   []string
	Role         string
	Capabilities []string
	TopK         int
	// Temperature overrides the model client's default when set.
	Temperature  *float64

	// Stage pins the growth stage when set.
	Stage model.GrowthStage
}

// ConfigFrom derives the engine settings from the loaded configuration.
func ConfigFrom(c *config.Config) Config {
	temp := c.LLM.Temperature
	return Config{
		AllowedIDs:   c.Robot.AllowedIDs,
		Capabilities: c.Robot.Capabilities,
		TopK:         c.Memory.DefaultTopK,
		Temperature:  &temp,
		Stage:        model.GrowthStage(c.Robot.Stage),
	}
}

// Turn is one user input.
type Turn struct {
	OwnerID      string
	SessionID    string
	UserText     string
	TouchZone    *model.TouchZone
	Mood         string
	AudioSeconds float64
}

func (t Turn) hasText() bool { return strings.TrimSpace(t.UserText) != "" }

// Reply is the structured result of a turn.
type Reply struct {
	Text           string            `json:"text"`
	Emotion        string            `json:"emotion"`
	Audio          string            `json:"audio,omitempty"`
	Actions        []string          `json:"action"`
	Expression     string            `json:"expression"`
	SessionID      string            `json:"session_id"`
	Stage          model.GrowthStage `json:"stage"`
	ContextSummary string            `json:"context_summary,omitempty"`
	MemoryCount    int               `json:"memory_count"`
	Degraded       bool              `json:"degraded,omitempty"`
	Fallback       bool              `json:"fallback,omitempty"`
}

// Prompts is the rendered prompt pair of a turn.
type Prompts struct {
	System      string          `json:"system"`
	Interaction string          `json:"interaction"`
	History     []model.Message `json:"history"`
}

// Engine orchestrates turns. Safe for concurrent use.
type Engine struct {
	cfg           Config
	memory        Memory
	llm           llm.Client
	tts           tts.Synthesizer
	personalities *persona.Personalities
	intimacy      *persona.IntimacyStore
	logger        *slog.Logger
	now           func() time.Time
}

// New creates an engine.
func New(cfg Config, mem Memory, client llm.Client, synth tts.Synthesizer, intimacy *persona.IntimacyStore, logger *slog.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if synth == nil {
		synth = tts.Nop{}
	}
	return &Engine{
		cfg:           cfg,
		memory:        mem,
		llm:           client,
		tts:           synth,
		personalities: persona.NewPersonalities(),
		intimacy:      intimacy,
		logger:        logger,
		now:           time.Now,
	}
}

// Personality returns the owner's live personality.
func (e *Engine) Personality(ownerID string) *persona.Personality {
	return e.personalities.For(ownerID)
}

// turnState is everything the prompts of a turn are rendered from.
type turnState struct {
	sessionID string
	mood      string
	stage     model.GrowthStage
	style     string
	memory    *model.FusionResult
	context   string
	total     int
	touch     *persona.TouchResponse
	prompts   Prompts
}

// Respond runs one turn. Validation and memory storage failures are
// returned; model, parse and speech failures fall back to a canned reply.
func (e *Engine) Respond(ctx context.Context, t Turn) (*Reply, error) {
	if err := e.validate(t); err != nil {
		return nil, err
	}

	sessionID, err := e.memory.StartSession(ctx, t.OwnerID, t.SessionID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	t.SessionID = sessionID
	if t.Mood == "" {
		t.Mood = persona.Perceive(t.UserText)
	}

	e.evolve(t)

	st, err := e.prepare(ctx, t)
	if err != nil {
		return nil, err
	}

	canned := CannedReply(st.stage, st.style, t.UserText, st.memory.Summary != "")
	reply := &Reply{
		SessionID:   sessionID,
		Stage:       st.stage,
		MemoryCount: st.memory.Count,
		Degraded:    st.memory.Degraded,
	}

	parsed, err := e.complete(ctx, st)
	if err != nil {
		e.logger.Warn("model reply unavailable, using canned reply",
			"owner_id", t.OwnerID, "session_id", sessionID, "stage", st.stage, "error", err)
		reply.Fallback = true
	}
	e.fill(reply, parsed, canned, st.mood)

	_, err = e.memory.Add(ctx, fusion.Interaction{
		OwnerID:      t.OwnerID,
		SessionID:    sessionID,
		UserText:     t.UserText,
		AgentText:    reply.Text,
		Mood:         st.mood,
		TouchZone:    t.TouchZone,
		AudioSeconds: t.AudioSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}
	reply.ContextSummary = e.memory.Summary(sessionID)

	if st.touch != nil {
		reply.Actions = []string{st.touch.Action}
		reply.Expression = st.touch.Expression
		if !t.hasText() {
			reply.Text = ""
		}
	}

	if reply.Text != "" {
		audio, err := e.tts.Synthesize(ctx, reply.Text)
		if err != nil {
			e.logger.Warn("speech unavailable", "owner_id", t.OwnerID, "session_id", sessionID, "error", err)
		}
		reply.Audio = audio
	}

	e.logger.Info("turn complete",
		"owner_id", t.OwnerID, "session_id", sessionID, "stage", st.stage, "mood", st.mood,
		"memories", st.memory.Count, "fallback", reply.Fallback, "touch", t.TouchZone != nil)
	return reply, nil
}

// Preview renders the prompts a turn would send without changing any
// state. An empty session id previews a turn outside any session.
func (e *Engine) Preview(ctx context.Context, t Turn) (Prompts, error) {
	if err := e.validate(t); err != nil {
		return Prompts{}, err
	}
	if t.Mood == "" {
		t.Mood = persona.Perceive(t.UserText)
	}
	st, err := e.prepare(ctx, t)
	if err != nil {
		return Prompts{}, err
	}
	return st.prompts, nil
}

func (e *Engine) validate(t Turn) error {
	if t.OwnerID == "" {
		return model.Invalid("owner", "robot id is required")
	}
	if len(e.cfg.AllowedIDs) > 0 && !slices.Contains(e.cfg.AllowedIDs, t.OwnerID) {
		return model.Invalid("owner", "robot %q is not allowed", t.OwnerID)
	}
	if t.TouchZone != nil && !t.TouchZone.Valid() {
		return model.Invalid("touch_zone", "unknown zone %d", int(*t.TouchZone))
	}
	if !t.hasText() && t.TouchZone == nil {
		return model.Invalid("turn", "a turn needs text or a touch")
	}
	return nil
}

// evolve updates personality and intimacy for the turn. Intimacy
// persistence failures are logged; they never fail a turn.
func (e *Engine) evolve(t Turn) {
	p := e.personalities.For(t.OwnerID)
	if b, ok := persona.InferBehavior(t.UserText, t.Mood); ok {
		p.Update(b)
	}
	if t.TouchZone != nil {
		p.Update(persona.BehaviorTouch)
	}

	if e.intimacy == nil {
		return
	}
	in, err := e.intimacy.For(t.OwnerID)
	if err != nil {
		e.logger.Warn("intimacy unavailable", "owner_id", t.OwnerID, "error", err)
		return
	}
	if t.TouchZone != nil {
		_, err = in.Touch(*t.TouchZone)
	} else {
		kind := "chat"
		if t.AudioSeconds > 0 {
			kind = "audio"
		}
		_, err = in.Interact(kind)
	}
	if err != nil {
		e.logger.Warn("intimacy not saved", "owner_id", t.OwnerID, "error", err)
	}
}

// prepare gathers the turn state and renders both prompts. It reads only.
func (e *Engine) prepare(ctx context.Context, t Turn) (*turnState, error) {
	p := e.personalities.For(t.OwnerID)
	st := &turnState{sessionID: t.SessionID, mood: t.Mood, style: p.Style()}
	st.stage, st.total = e.stage(ctx, t.OwnerID)

	query := t.UserText
	if !t.hasText() && t.TouchZone != nil {
		query = "touch " + t.TouchZone.String()
	}
	res, err := e.memory.Query(ctx, fusion.QueryParams{
		OwnerID:    t.OwnerID,
		Prompt:     query,
		TopK:       e.cfg.TopK,
		SessionID:  t.SessionID,
		UseContext: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	st.memory = res
	if t.SessionID != "" {
		st.context = e.memory.Summary(t.SessionID)
	}

	codes := model.CodesFor(st.mood)
	actions := model.ActionsFor(codes.Actions...)
	expressions := model.ExpressionsFor(codes.Expression)

	var touchContent string
	info := &prompt.ContextInfo{}
	if t.TouchZone != nil {
		if tr, ok := e.touchResponse(t.OwnerID, *t.TouchZone); ok {
			st.touch = &tr
			actions = append(actions, model.ActionsFor(tr.Action)...)
			expressions = append(expressions, model.ExpressionsFor(tr.Expression)...)
			touchContent = fmt.Sprintf("my owner touched my %s; we are %s (intimacy %d)", t.TouchZone, tr.Level, tr.Value)
		} else {
			touchContent = fmt.Sprintf("my owner touched my %s", t.TouchZone)
		}
		zone := model.CodesFor(fmt.Sprintf("touch_zone_%d", int(*t.TouchZone)))
		actions = append(actions, model.ActionsFor(zone.Actions...)...)
		expressions = append(expressions, model.ExpressionsFor(zone.Expression)...)
		info = &prompt.ContextInfo{Touched: true, Zone: t.TouchZone.String()}
	}

	factors := prompt.BuildFactors(prompt.FactorInput{
		Stage:          st.stage,
		TraitSummary:   p.TraitSummary(),
		DominantTraits: p.DominantTraits(),
		Style:          st.style,
		Mood:           st.mood,
		TouchContent:   touchContent,
		Memory:         res,
		ContextSummary: st.context,
		SessionID:      t.SessionID,
		UserText:       t.UserText,
	})
	interaction, err := prompt.BuildInteractionPrompt(factors, dedupActions(actions), dedupExpressions(expressions), info)
	if err != nil {
		return nil, err
	}
	system, err := prompt.BuildSystemPrompt(prompt.Identity{
		RobotID:      t.OwnerID,
		Role:         e.cfg.Role,
		Capabilities: e.cfg.Capabilities,
	}, st.stage, prompt.PersonalityInfo{Style: st.style, Traits: p.DominantTraits()}, st.total, t.SessionID)
	if err != nil {
		return nil, err
	}

	var history []model.Message
	if t.SessionID != "" {
		history = e.memory.History(ctx, t.SessionID)
	}
	st.prompts = Prompts{System: system, Interaction: interaction, History: history}
	return st, nil
}

func (e *Engine) touchResponse(ownerID string, zone model.TouchZone) (persona.TouchResponse, bool) {
	if e.intimacy == nil {
		return persona.TouchResponse{}, false
	}
	in, err := e.intimacy.For(ownerID)
	if err != nil {
		return persona.TouchResponse{}, false
	}
	return in.TouchResponse(zone), true
}

// stage returns the growth stage and the owner's durable record count.
// Progress read failures fall back to the default stage.
func (e *Engine) stage(ctx context.Context, ownerID string) (model.GrowthStage, int) {
	prog, err := e.memory.Progress(ctx, ownerID)
	if err != nil {
		e.logger.Warn("growth progress unavailable", "owner_id", ownerID, "error", err)
		if e.cfg.Stage != "" {
			return e.cfg.Stage, 0
		}
		return model.DefaultStage, 0
	}
	if e.cfg.Stage != "" {
		return e.cfg.Stage, prog.Interactions
	}
	days := persona.DaysSince(prog.FirstSeen, e.now())
	return persona.StageFor(days, prog.Interactions, prog.AudioSeconds), prog.Interactions
}

func (e *Engine) complete(ctx context.Context, st *turnState) (ParsedReply, error) {
	if e.llm == nil {
		return ParsedReply{}, fmt.Errorf("%w: no model configured", llm.ErrUpstream)
	}
	raw, err := e.llm.Complete(ctx, llm.Request{
		System:      st.prompts.System,
		User:        st.prompts.Interaction,
		History:     st.prompts.History,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return ParsedReply{}, err
	}
	return ParseReply(raw)
}

// fill completes reply from the parsed model output, falling back field
// by field to the canned text and the mood's default codes.
func (e *Engine) fill(reply *Reply, parsed ParsedReply, canned, mood string) {
	reply.Text = parsed.Text
	if reply.Text == "" {
		reply.Text = canned
	}
	reply.Emotion = parsed.Emotion
	if reply.Emotion == "" {
		reply.Emotion = mood
	}
	defaults := model.CodesFor(reply.Emotion)
	reply.Actions = parsed.Actions
	if len(reply.Actions) == 0 {
		reply.Actions = slices.Clone(defaults.Actions)
	}
	reply.Expression = parsed.Expression
	if reply.Expression == "" {
		reply.Expression = defaults.Expression
	}
}

// CannedReply is the stage-appropriate reply used when the model fails.
// It never quotes stored memory and is capped like a model reply.
func CannedReply(stage model.GrowthStage, style, userText string, remembers bool) string {
	hasText := strings.TrimSpace(userText) != ""
	var text string
	switch stage {
	case model.StageSprout:
		text = "Yi-ya"
		if hasText {
			text = "Ya-ya"
		}
	case model.StageResonate:
		text = fmt.Sprintf("[%s] I'm here", style)
		if hasText {
			text = fmt.Sprintf("[%s] %s? I'm listening", style, userText)
		}
	case model.StageAwaken:
		text = fmt.Sprintf("[%s] %s", style, userText)
		if remembers {
			text = fmt.Sprintf("[%s] I remember our chats | %s", style, userText)
		}
	default:
		text = "Hello"
	}
	return truncate(text, prompt.MaxReplyChars)
}

func dedupActions(in []model.Action) []model.Action {
	seen := map[string]bool{}
	return slices.DeleteFunc(in, func(a model.Action) bool {
		if seen[a.Code] {
			return true
		}
		seen[a.Code] = true
		return false
	})
}

func dedupExpressions(in []model.Expression) []model.Expression {
	seen := map[string]bool{}
	return slices.DeleteFunc(in, func(x model.Expression) bool {
		if seen[x.Code] {
			return true
		}
		seen[x.Code] = true
		return false
	})
}
