// Package fusion retrieves memories from three independent strategies and
// fuses them into one ranked, deduplicated list.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/companion-brain/internal/embedding"
	"github.com/rcliao/companion-brain/internal/model"
	"github.com/rcliao/companion-brain/internal/store"
)

// Source weights applied before ranking.
var sourceWeights = map[model.Source]float64{
	model.SourceSemantic:  1.0,
	model.SourceContext:   1.2,
	model.SourceEmotional: 1.1,
}

// Branch order for deduplication. The first occurrence of an id wins, so
// ordering by descending weight attributes a duplicate to its strongest
// source.
var fusionOrder = []model.Source{model.SourceContext, model.SourceEmotional, model.SourceSemantic}

// EmotionKeywords maps moods to the prompt substrings that select them.
var EmotionKeywords = map[string][]string{
	model.MoodHappy:     {"happy", "glad", "joy", "cheerful", "delighted", "excited"},
	model.MoodSad:       {"sad", "upset", "unhappy", "depressed", "disappointed"},
	model.MoodAngry:     {"angry", "mad", "annoyed", "furious"},
	model.MoodSurprised: {"surprised", "shocked", "unexpected", "amazed"},
	model.MoodExcited:   {"excited", "thrilled", "passionate", "pumped"},
}

const (
	defaultScanLimit = 100
	summaryRecords   = 3
)

// Reader is the read side of the memory store.
type Reader interface {
	ScanBySession(ctx context.Context, sessionID string, limit int) ([]model.MemoryRecord, error)
	ScanByOwner(ctx context.Context, ownerID string, limit int, f store.ScanFilter) ([]model.MemoryRecord, error)
}

// Vectorizer produces query vectors and reports whether a vector came from
// the degraded fallback.
type Vectorizer interface {
	EmbedText(ctx context.Context, text string) (embedding.Vector, bool)
}

// QueryParams holds parameters for a memory query.
type QueryParams struct {
	OwnerID    string
	Prompt     string
	TopK       int
	SessionID  string
	UseContext bool
}

// Engine runs memory queries. It never mutates the store or the windows.
type Engine struct {
	reader    Reader
	vectors   Vectorizer
	logger    *slog.Logger
	scanLimit int
}

// NewEngine creates a fusion engine. scanLimit bounds the semantic scan.
func NewEngine(reader Reader, vectors Vectorizer, logger *slog.Logger, scanLimit int) *Engine {
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	return &Engine{reader: reader, vectors: vectors, logger: logger, scanLimit: scanLimit}
}

// Hit is a fused record with the source it is attributed to.
type Hit struct {
	Record model.MemoryRecord
	Source model.Source
	Score  float64
}

// Query runs the semantic, context and emotional branches in parallel and
// fuses their results. Read failures in a branch are logged and the branch
// contributes nothing.
func (e *Engine) Query(ctx context.Context, p QueryParams) (*model.FusionResult, error) {
	if p.TopK <= 0 {
		return nil, model.Invalid("topK", "must be positive, got %d", p.TopK)
	}
	if p.OwnerID == "" {
		return nil, model.Invalid("owner", "owner id is required")
	}
	useContext := p.UseContext && p.SessionID != ""

	var semantic, recent, emotional []model.MemoryRecord
	var degraded bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, degraded = e.semantic(gctx, p.OwnerID, p.Prompt, p.TopK)
		return nil
	})
	if useContext {
		g.Go(func() error {
			recent = e.recent(gctx, p.SessionID, p.TopK)
			return nil
		})
	}
	g.Go(func() error {
		emotional = e.emotional(gctx, p.OwnerID, p.Prompt, p.TopK)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	branches := map[model.Source][]model.MemoryRecord{
		model.SourceSemantic:  semantic,
		model.SourceContext:   recent,
		model.SourceEmotional: emotional,
	}
	hits := Fuse(branches, p.TopK)

	res := &model.FusionResult{
		Records: lo.Map(hits, func(h Hit, _ int) model.MemoryRecord { return h.Record }),
		SourceCounts: model.SourceCounts{
			Semantic:  len(semantic),
			Context:   len(recent),
			Emotional: len(emotional),
		},
		Attribution: make(map[string]model.Source, len(hits)),
		Degraded:    degraded,
	}
	for _, h := range hits {
		res.Attribution[h.Record.ID] = h.Source
	}
	res.Count = len(res.Records)
	res.Summary = Summarize(res.Records)

	if degraded {
		e.logger.Warn("semantic retrieval ran on fallback vectors", "owner_id", p.OwnerID)
	}
	e.logger.Debug("memory query",
		"owner_id", p.OwnerID, "session_id", p.SessionID, "top_k", p.TopK,
		"semantic", len(semantic), "context", len(recent), "emotional", len(emotional), "fused", res.Count)

	return res, nil
}

func (e *Engine) semantic(ctx context.Context, ownerID, prompt string, topK int) ([]model.MemoryRecord, bool) {
	query, degraded := e.vectors.EmbedText(ctx, prompt)

	candidates, err := e.reader.ScanByOwner(ctx, ownerID, e.scanLimit, store.ScanFilter{WithEmbedding: true})
	if err != nil {
		e.logger.Warn("semantic retrieval failed", "owner_id", ownerID, "error", err)
		return nil, degraded
	}

	type scored struct {
		record model.MemoryRecord
		sim    float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{record: c, sim: embedding.CosineSimilarity(query, c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })

	out := make([]model.MemoryRecord, 0, min(topK, len(ranked)))
	for _, r := range ranked[:min(topK, len(ranked))] {
		out = append(out, r.record)
	}
	return out, degraded
}

func (e *Engine) recent(ctx context.Context, sessionID string, topK int) []model.MemoryRecord {
	records, err := e.reader.ScanBySession(ctx, sessionID, topK)
	if err != nil {
		e.logger.Warn("context retrieval failed", "session_id", sessionID, "error", err)
		return nil
	}
	return records
}

func (e *Engine) emotional(ctx context.Context, ownerID, prompt string, topK int) []model.MemoryRecord {
	moods := MatchMoods(prompt)
	if len(moods) == 0 {
		return nil
	}
	records, err := e.reader.ScanByOwner(ctx, ownerID, topK, store.ScanFilter{Moods: moods, ByImportance: true})
	if err != nil {
		e.logger.Warn("emotional retrieval failed", "owner_id", ownerID, "error", err)
		return nil
	}
	return records
}

// MatchMoods returns the moods whose keywords appear in text, sorted.
func MatchMoods(text string) []string {
	lower := strings.ToLower(text)
	var moods []string
	for mood, words := range EmotionKeywords {
		if lo.SomeBy(words, func(w string) bool { return strings.Contains(lower, w) }) {
			moods = append(moods, mood)
		}
	}
	slices.Sort(moods)
	return moods
}

// Fuse weights every branch result, drops duplicate ids keeping the
// strongest source, and returns the topK hits ranked by
// weight*importance.
func Fuse(branches map[model.Source][]model.MemoryRecord, topK int) []Hit {
	var all []Hit
	for _, src := range fusionOrder {
		w := sourceWeights[src]
		for _, r := range branches[src] {
			all = append(all, Hit{Record: r, Source: src, Score: w * r.ImportanceScore})
		}
	}

	unique := lo.UniqBy(all, func(h Hit) string { return h.Record.ID })
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Score > unique[j].Score })

	if len(unique) > topK {
		unique = unique[:topK]
	}
	return unique
}

// Summarize renders the three most important records as one sentence each.
func Summarize(records []model.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}
	top := slices.Clone(records)
	sort.SliceStable(top, func(i, j int) bool { return top[i].ImportanceScore > top[j].ImportanceScore })
	top = top[:min(summaryRecords, len(top))]

	parts := lo.Map(top, func(r model.MemoryRecord, _ int) string {
		return fmt.Sprintf("user said '%s', I replied '%s', mood was %s", r.UserText, r.AgentText, r.MoodTag)
	})
	return strings.Join(parts, "; ")
}
