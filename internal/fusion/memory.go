package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/companion-brain/internal/embedding"
	"github.com/rcliao/companion-brain/internal/model"
	"github.com/rcliao/companion-brain/internal/scoring"
	"github.com/rcliao/companion-brain/internal/store"
	"github.com/rcliao/companion-brain/internal/window"
)

// Store is the durable store the memory system writes to.
type Store interface {
	Reader
	StartSession(ctx context.Context, ownerID, sessionID string) (string, error)
	Insert(ctx context.Context, rec model.MemoryRecord) (model.MemoryRecord, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) error
	PurgeSession(ctx context.Context, sessionID string) (int, error)
	History(ctx context.Context, p store.HistoryParams) ([]model.MemoryRecord, error)
	Stats(ctx context.Context, ownerID string) (*store.Stats, error)
	FirstSeen(ctx context.Context, ownerID string) (time.Time, error)
}

// Embedder is a never-failing vector source.
type Embedder interface {
	Vectorizer
	Degraded() bool
}

// Options tunes the memory system.
type Options struct {
	ContextWindow     int
	SemanticScanLimit int
	HistoryMaxRecords int
	HistoryCharBudget int
}

// Memory is the layered memory system: durable store, per-session windows
// and the fusion engine.
type Memory struct {
	store    Store
	embedder Embedder
	windows  *window.Registry
	engine   *Engine
	logger   *slog.Logger
	opts     Options
}

// NewMemory wires the memory system.
func NewMemory(s Store, e Embedder, logger *slog.Logger, opts Options) *Memory {
	if opts.HistoryMaxRecords <= 0 {
		opts.HistoryMaxRecords = 50
	}
	return &Memory{
		store:    s,
		embedder: e,
		windows:  window.NewRegistry(opts.ContextWindow),
		engine:   NewEngine(s, e, logger, opts.SemanticScanLimit),
		logger:   logger,
		opts:     opts,
	}
}

// Interaction is one exchange to remember.
type Interaction struct {
	OwnerID   string
	SessionID string
	ContextID string
	UserText  string
	AgentText string
	Mood      string
	TouchZone *model.TouchZone

	// AudioSeconds is the length of the user's voice input, if any.
	AudioSeconds float64
}

// StartSession creates the durable session and its window.
func (m *Memory) StartSession(ctx context.Context, ownerID, sessionID string) (string, error) {
	id, err := m.store.StartSession(ctx, ownerID, sessionID)
	if err != nil {
		return "", err
	}
	m.window(ctx, id, ownerID)
	return id, nil
}

// window returns the session window, seeding a fresh one from the durable
// interaction counter.
func (m *Memory) window(ctx context.Context, sessionID, ownerID string) *window.Window {
	if w, ok := m.windows.Get(sessionID); ok {
		return w
	}
	w := m.windows.Ensure(sessionID, ownerID)
	if sess, err := m.store.GetSession(ctx, sessionID); err == nil {
		w.Seed(sess.InteractionCount)
	}
	return w
}

// Add scores, embeds and persists an interaction, then appends it to the
// session window. A storage failure is returned, never dropped.
func (m *Memory) Add(ctx context.Context, in Interaction) (model.MemoryRecord, error) {
	if in.OwnerID == "" {
		return model.MemoryRecord{}, model.Invalid("owner", "owner id is required")
	}
	if in.SessionID == "" {
		return model.MemoryRecord{}, model.Invalid("session", "session id is required")
	}
	mood := in.Mood
	if mood == "" {
		mood = model.MoodNeutral
	}

	w := m.window(ctx, in.SessionID, in.OwnerID)
	rec, err := w.Insert(func(ordinal, length int) (model.MemoryRecord, error) {
		r := model.MemoryRecord{
			OwnerID:   in.OwnerID,
			SessionID: in.SessionID,
			ContextID: in.ContextID,
			UserText:  in.UserText,
			AgentText: in.AgentText,
			MoodTag:   mood,
			TouchZone: in.TouchZone,
			Kind:      model.KindInteraction,
			ImportanceScore: scoring.Score(scoring.Input{
				UserText:  in.UserText,
				AgentText: in.AgentText,
				Mood:      mood,
				Touch:     in.TouchZone != nil,
				Ordinal:   ordinal,
			}),
			Metadata: map[string]any{
				"interaction_count": ordinal,
				"session_length":    length,
			},
		}
		if in.AudioSeconds > 0 {
			r.Metadata["audio_seconds"] = in.AudioSeconds
		}

		vec, degraded := m.embedder.EmbedText(ctx, strings.TrimSpace(in.UserText+" "+in.AgentText))
		if degraded {
			r.Metadata["embedding_degraded"] = true
		} else {
			r.Embedding = vec
		}

		return m.store.Insert(ctx, r)
	})
	if err != nil {
		return rec, fmt.Errorf("add memory: %w", err)
	}

	snap := w.Snapshot()
	err = m.store.UpdateSession(ctx, model.Session{
		ID:               in.SessionID,
		OwnerID:          in.OwnerID,
		InteractionCount: snap.InteractionCount,
		MoodSummary:      snap.DominantMood(),
		ContextSummary:   snap.RollingSummary,
	})
	if err != nil {
		m.logger.Warn("session stats not updated", "session_id", in.SessionID, "error", err)
	}

	m.logger.Debug("memory added",
		"owner_id", in.OwnerID, "session_id", in.SessionID, "id", rec.ID,
		"importance", rec.ImportanceScore, "mood", rec.MoodTag)
	return rec, nil
}

// Query runs a fused memory query.
func (m *Memory) Query(ctx context.Context, p QueryParams) (*model.FusionResult, error) {
	return m.engine.Query(ctx, p)
}

// Summary returns the rolling summary of a session window.
func (m *Memory) Summary(sessionID string) string {
	return m.windows.SummaryOf(sessionID)
}

// Window returns a snapshot of the session window, if one is live.
func (m *Memory) Window(sessionID string) (window.Snapshot, bool) {
	w, ok := m.windows.Get(sessionID)
	if !ok {
		return window.Snapshot{}, false
	}
	return w.Snapshot(), true
}

// PurgeSession deletes a session's durable records and drops its window.
// It returns the number of durable records removed.
func (m *Memory) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	n, err := m.store.PurgeSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	cleared := m.windows.Clear(sessionID)
	m.logger.Info("session cleared", "session_id", sessionID, "records", n, "window_records", cleared)
	return n, nil
}

// History returns the session's recent exchanges as chat messages, oldest
// first. Read failures yield an empty history.
func (m *Memory) History(ctx context.Context, sessionID string) []model.Message {
	records, err := m.store.History(ctx, store.HistoryParams{
		SessionID: sessionID,
		Limit:     m.opts.HistoryMaxRecords,
		Budget:    m.opts.HistoryCharBudget,
	})
	if err != nil {
		m.logger.Warn("history unavailable", "session_id", sessionID, "error", err)
		return nil
	}
	return store.Messages(records)
}

// Stats extends the store statistics with live state.
type Stats struct {
	*store.Stats
	ActiveSessions    int  `json:"active_sessions"`
	EmbeddingDegraded bool `json:"embedding_degraded"`
}

// Stats returns owner statistics.
func (m *Memory) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	st, err := m.store.Stats(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Stats:             st,
		ActiveSessions:    m.windows.Active(),
		EmbeddingDegraded: m.embedder.Degraded(),
	}, nil
}

// Progress is the accumulated data a growth stage is judged on.
type Progress struct {
	FirstSeen    time.Time
	Interactions int
	AudioSeconds float64
}

// Progress returns the owner's accumulated interaction data.
func (m *Memory) Progress(ctx context.Context, ownerID string) (Progress, error) {
	st, err := m.store.Stats(ctx, ownerID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Interactions: st.TotalRecords, AudioSeconds: st.AudioSeconds}
	first, err := m.store.FirstSeen(ctx, ownerID)
	switch {
	case err == nil:
		p.FirstSeen = first
	case !errors.Is(err, store.ErrNotFound):
		return p, err
	}
	return p, nil
}

var _ Embedder = (*embedding.Resilient)(nil)
