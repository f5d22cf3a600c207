package dialogue

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-brain/internal/config"
	"github.com/rcliao/companion-brain/internal/embedding"
	"github.com/rcliao/companion-brain/internal/fusion"
	"github.com/rcliao/companion-brain/internal/llm"
	"github.com/rcliao/companion-brain/internal/logger"
	"github.com/rcliao/companion-brain/internal/model"
	"github.com/rcliao/companion-brain/internal/persona"
	"github.com/rcliao/companion-brain/internal/prompt"
	"github.com/rcliao/companion-brain/internal/store"
)

const dims = 32

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeTTS struct {
	err   error
	texts []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return "", f.err
	}
	return "/audio/" + text + ".mp3", nil
}

// failingAdd wraps a memory whose durable writes fail.
type failingAdd struct {
	*fusion.Memory
}

func (failingAdd) Add(context.Context, fusion.Interaction) (model.MemoryRecord, error) {
	return model.MemoryRecord{}, errors.New("disk full")
}

type fixture struct {
	engine   *Engine
	mem      *fusion.Memory
	llm      *fakeLLM
	tts      *fakeTTS
	intimacy *persona.IntimacyStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewSQLiteStore(filepath.Join(dir, "brain.db"), store.WithVectorDimension(dims))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	emb := embedding.NewResilient(embedding.NewHashEmbedder(dims), dims, logger.Nop())
	mem := fusion.NewMemory(s, emb, logger.Nop(), fusion.Options{ContextWindow: 10, SemanticScanLimit: 100})
	intimacy, err := persona.NewIntimacyStore(dir, logger.Nop())
	require.NoError(t, err)

	f := &fixture{mem: mem, llm: &fakeLLM{}, tts: &fakeTTS{}, intimacy: intimacy}
	f.engine = New(cfg, mem, f.llm, f.tts, intimacy, logger.Nop())
	return f
}

func TestRespondParsedReply(t *testing.T) {
	f := newFixture(t, Config{Stage: model.StageAwaken})
	f.llm.reply = `{"text":"Cats are the best!","emotion":"excited","action":["A012"],"expression":"E005"}`
	ctx := context.Background()

	r, err := f.engine.Respond(ctx, Turn{OwnerID: "robotA", UserText: "I like cats"})
	require.NoError(t, err)
	assert.False(t, r.Fallback)
	assert.NotEmpty(t, r.SessionID)
	assert.Equal(t, model.StageAwaken, r.Stage)
	assert.Equal(t, "Cats are the best!", r.Text)
	assert.Equal(t, "excited", r.Emotion)
	assert.Equal(t, []string{"A012"}, r.Actions)
	assert.Equal(t, "E005", r.Expression)
	assert.Equal(t, "/audio/Cats are the best!.mp3", r.Audio)
	assert.Contains(t, r.ContextSummary, "user said 'I like cats'")

	require.Equal(t, 1, f.llm.calls())
	req := f.llm.reqs[0]
	assert.Contains(t, req.System, "You are robotA")
	assert.NotContains(t, req.System, "I like cats")
	assert.Contains(t, req.User, "User said: I like cats")
	assert.Empty(t, req.History)

	// the second turn sees the first in its history and memory
	_, err = f.engine.Respond(ctx, Turn{OwnerID: "robotA", SessionID: r.SessionID, UserText: "do you remember cats?"})
	require.NoError(t, err)
	req = f.llm.reqs[1]
	require.Len(t, req.History, 2)
	assert.Equal(t, "I like cats", req.History[0].Content)
	assert.Equal(t, "Cats are the best!", req.History[1].Content)
	assert.Contains(t, req.User, "## Memory reference")

	stats, err := f.mem.Stats(ctx, "robotA")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecords)
}

func TestRespondFillsMissingFields(t *testing.T) {
	f := newFixture(t, Config{Stage: model.StageResonate})
	f.llm.reply = `{"text":"I see","emotion":"sad"}`

	r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "my day was bad"})
	require.NoError(t, err)
	assert.False(t, r.Fallback)
	assert.Equal(t, "I see", r.Text)
	assert.Equal(t, model.CodesFor("sad").Actions, r.Actions)
	assert.Equal(t, model.CodesFor("sad").Expression, r.Expression)
}

func TestRespondFallsBackOnModelFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "upstream", err: llm.ErrUpstream},
		{name: "empty", err: llm.ErrEmptyReply},
		{name: "unparseable", reply: "I'd rather not answer in JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{Stage: model.StageResonate})
			f.llm.reply, f.llm.err = tt.reply, tt.err

			r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "hello", Mood: "happy"})
			require.NoError(t, err)
			assert.True(t, r.Fallback)
			assert.Equal(t, "[enthusiastic] hello? I'm listening", r.Text)
			assert.Equal(t, "happy", r.Emotion)
			assert.Equal(t, model.CodesFor("happy").Actions, r.Actions)
			assert.Equal(t, "E001", r.Expression)

			// the fallback exchange is still remembered
			stats, err := f.mem.Stats(context.Background(), "robotA")
			require.NoError(t, err)
			assert.Equal(t, 1, stats.TotalRecords)
		})
	}
}

func TestRespondStageFromProgress(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = llm.ErrUpstream

	r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.StageSprout, r.Stage)
	assert.Equal(t, "Ya-ya", r.Text)
}

func TestRespondPureTouch(t *testing.T) {
	f := newFixture(t, Config{Stage: model.StageAwaken})
	f.llm.reply = `{"text":"mm~","emotion":"happy","action":["A001"],"expression":"E001"}`

	r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", TouchZone: model.Zone(model.TouchHead)})
	require.NoError(t, err)
	assert.Empty(t, r.Text)
	assert.Empty(t, r.Audio)
	assert.Empty(t, f.tts.texts)
	assert.Equal(t, []string{"A106"}, r.Actions)
	assert.Equal(t, "E019", r.Expression)

	req := f.llm.reqs[0]
	assert.Contains(t, req.User, "User said: (no text input)")
	assert.Contains(t, req.User, "zone: head")
	assert.Contains(t, req.User, "A106")
	assert.NotContains(t, req.User, "## Memory reference")

	in, err := f.intimacy.For("robotA")
	require.NoError(t, err)
	assert.Equal(t, persona.BaseIntimacy+persona.ZoneBonus[model.TouchHead], in.Value())
}

func TestRespondTouchWithTextKeepsText(t *testing.T) {
	f := newFixture(t, Config{Stage: model.StageAwaken})
	f.llm.reply = `{"text":"That tickles","emotion":"happy","action":["A001"],"expression":"E001"}`

	r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "pat pat", TouchZone: model.Zone(model.TouchChest)})
	require.NoError(t, err)
	assert.Equal(t, "That tickles", r.Text)
	assert.Equal(t, []string{"A108"}, r.Actions)
	assert.Equal(t, "E021", r.Expression)
}

func TestRespondChatRaisesIntimacy(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = llm.ErrUpstream
	ctx := context.Background()

	_, err := f.engine.Respond(ctx, Turn{OwnerID: "robotA", UserText: "hi"})
	require.NoError(t, err)
	_, err = f.engine.Respond(ctx, Turn{OwnerID: "robotA", UserText: "listen", AudioSeconds: 2.5})
	require.NoError(t, err)

	in, err := f.intimacy.For("robotA")
	require.NoError(t, err)
	assert.Equal(t, persona.BaseIntimacy+persona.InteractionBonus["chat"]+persona.InteractionBonus["audio"], in.Value())

	prog, err := f.mem.Progress(ctx, "robotA")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, prog.AudioSeconds, 1e-9)
}

func TestRespondPraiseShapesPersonality(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = llm.ErrUpstream

	before := f.engine.Personality("robotA").Vector()
	_, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "thanks a lot"})
	require.NoError(t, err)
	after := f.engine.Personality("robotA").Vector()
	assert.NotEqual(t, before, after)
}

func TestRespondValidation(t *testing.T) {
	f := newFixture(t, Config{AllowedIDs: []string{"robotA"}})
	ctx := context.Background()

	tests := map[string]Turn{
		"no owner":     {UserText: "hi"},
		"not allowed":  {OwnerID: "robotZ", UserText: "hi"},
		"empty turn":   {OwnerID: "robotA", UserText: "   "},
		"invalid zone": {OwnerID: "robotA", TouchZone: model.Zone(7)},
	}
	for name, turn := range tests {
		_, err := f.engine.Respond(ctx, turn)
		assert.ErrorIs(t, err, model.ErrValidation, name)
	}
	assert.Zero(t, f.llm.calls())
}

func TestRespondMemoryFailureIsReturned(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.reply = `{"text":"hi"}`
	e := New(Config{}, failingAdd{f.mem}, f.llm, f.tts, f.intimacy, logger.Nop())

	_, err := e.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, f.tts.texts)
}

func TestRespondSpeechFailureLeavesAudioEmpty(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.reply = `{"text":"hello there"}`
	f.tts.err = errors.New("tts down")

	r, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", r.Text)
	assert.Empty(t, r.Audio)
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	f := newFixture(t, Config{Stage: model.StageEnlighten})
	ctx := context.Background()

	p, err := f.engine.Preview(ctx, Turn{OwnerID: "robotA", UserText: "what is this?"})
	require.NoError(t, err)
	assert.Contains(t, p.System, "You are robotA")
	assert.Contains(t, p.Interaction, "User said: what is this?")
	assert.Contains(t, p.Interaction, "## Output requirements")

	assert.Zero(t, f.llm.calls())
	stats, err := f.mem.Stats(ctx, "robotA")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
	in, err := f.intimacy.For("robotA")
	require.NoError(t, err)
	assert.Equal(t, persona.BaseIntimacy, in.Value())
}

func TestCannedReply(t *testing.T) {
	assert.Equal(t, "Ya-ya", CannedReply(model.StageSprout, "neutral", "hi", false))
	assert.Equal(t, "Yi-ya", CannedReply(model.StageSprout, "neutral", "", false))
	assert.Equal(t, "Hello", CannedReply(model.StageEnlighten, "neutral", "hi", false))
	assert.Equal(t, "[cold] hi? I'm listening", CannedReply(model.StageResonate, "cold", "hi", false))
	assert.Equal(t, "[enthusiastic] I remember our chats | hi",
		CannedReply(model.StageAwaken, "enthusiastic", "hi", true))
	assert.Equal(t, "[neutral] hi", CannedReply(model.StageAwaken, "neutral", "hi", false))
}

func TestCannedReplyIsCapped(t *testing.T) {
	long := strings.Repeat("猫", 80)
	for _, stage := range []model.GrowthStage{model.StageResonate, model.StageAwaken} {
		got := CannedReply(stage, "enthusiastic", long, true)
		assert.Equal(t, prompt.MaxReplyChars, utf8.RuneCountInString(got), stage)
	}
}

func TestRespondRepeatedFallbackStaysBounded(t *testing.T) {
	for _, stage := range []model.GrowthStage{model.StageResonate, model.StageAwaken} {
		t.Run(string(stage), func(t *testing.T) {
			f := newFixture(t, Config{Stage: stage})
			f.llm.err = llm.ErrUpstream
			ctx := context.Background()

			sessionID := ""
			for i := 0; i < 5; i++ {
				r, err := f.engine.Respond(ctx, Turn{OwnerID: "robotA", SessionID: sessionID, UserText: "tell me about my family"})
				require.NoError(t, err)
				require.True(t, r.Fallback)
				sessionID = r.SessionID

				assert.LessOrEqual(t, utf8.RuneCountInString(r.Text), prompt.MaxReplyChars)
				// earlier replies are never echoed back
				assert.Equal(t, 1, strings.Count(r.Text, "tell me"))
			}
			for _, text := range f.tts.texts {
				assert.LessOrEqual(t, utf8.RuneCountInString(text), prompt.MaxReplyChars)
			}
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Robot.Stage = "resonate"
	cfg.Memory.DefaultTopK = 7

	got := ConfigFrom(cfg)
	assert.Equal(t, cfg.Robot.AllowedIDs, got.AllowedIDs)
	assert.Equal(t, 7, got.TopK)
	assert.Equal(t, model.StageResonate, got.Stage)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, cfg.LLM.Temperature, *got.Temperature, 1e-9)
}

func TestRespondPassesTemperature(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name string
		temp *float64
	}{
		{name: "unset", temp: nil},
		{name: "explicit zero", temp: &zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{Stage: model.StageAwaken, Temperature: tt.temp})
			f.llm.err = llm.ErrUpstream

			_, err := f.engine.Respond(context.Background(), Turn{OwnerID: "robotA", UserText: "hi"})
			require.NoError(t, err)
			require.Equal(t, 1, f.llm.calls())
			assert.Equal(t, tt.temp, f.llm.reqs[0].Temperature)
		})
	}
}
