// Package window keeps the in-memory context window of each active session.
package window

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rcliao/companion-brain/internal/model"
)

const (
	// DefaultCapacity is the number of records a window retains.
	DefaultCapacity = 10
	summaryRecords  = 3
	trendLength     = 5
)

// Window is the bounded recent history of one session.
type Window struct {
	mu       sync.Mutex
	session  string
	owner    string
	capacity int
	records  []model.MemoryRecord
	summary  string
	trend    []string
	count    int
}

// Snapshot is a copy of a window's state.
type Snapshot struct {
	SessionID        string               `json:"session_id"`
	OwnerID          string               `json:"owner_id"`
	Records          []model.MemoryRecord `json:"records"`
	RollingSummary   string               `json:"rolling_summary"`
	EmotionTrend     []string             `json:"emotion_trend"`
	InteractionCount int                  `json:"interaction_count"`
}

// Append pushes rec, evicting the oldest record at capacity.
func (w *Window) Append(rec model.MemoryRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.push(rec)
}

// Insert reserves the next interaction ordinal and calls persist with it
// while holding the window lock, so that records of one session are
// persisted and appended in submission order. The record returned by
// persist is appended only when persist succeeds.
func (w *Window) Insert(persist func(ordinal, length int) (model.MemoryRecord, error)) (model.MemoryRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := persist(w.count+1, len(w.records)+1)
	if err != nil {
		return rec, err
	}
	w.push(rec)
	return rec, nil
}

func (w *Window) push(rec model.MemoryRecord) {
	if len(w.records) >= w.capacity {
		w.records = append(w.records[:0:0], w.records[1:]...)
	}
	w.records = append(w.records, rec)
	w.count++

	mood := rec.MoodTag
	if mood == "" {
		mood = model.MoodNeutral
	}
	w.trend = append(w.trend, mood)
	if len(w.trend) > trendLength {
		w.trend = w.trend[len(w.trend)-trendLength:]
	}

	w.summary = summarize(w.records)
}

func summarize(records []model.MemoryRecord) string {
	start := max(len(records)-summaryRecords, 0)
	parts := make([]string, 0, summaryRecords)
	for _, r := range records[start:] {
		parts = append(parts, Sentence(r))
	}
	return strings.Join(parts, "; ")
}

// Sentence renders one exchange as "user said 'X', I replied 'Y'".
func Sentence(r model.MemoryRecord) string {
	switch {
	case r.UserText == "" && r.TouchZone != nil:
		if r.AgentText == "" {
			return fmt.Sprintf("user touched my %s", r.TouchZone)
		}
		return fmt.Sprintf("user touched my %s, I replied '%s'", r.TouchZone, r.AgentText)
	case r.AgentText == "":
		return fmt.Sprintf("user said '%s'", r.UserText)
	}
	return fmt.Sprintf("user said '%s', I replied '%s'", r.UserText, r.AgentText)
}

// Seed sets the interaction counter of a fresh window, so ordinals continue
// from the durable session counter after a restart.
func (w *Window) Seed(count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count == 0 && len(w.records) == 0 {
		w.count = count
	}
}

// Snapshot returns a copy of the window state.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		SessionID:        w.session,
		OwnerID:          w.owner,
		Records:          append([]model.MemoryRecord(nil), w.records...),
		RollingSummary:   w.summary,
		EmotionTrend:     append([]string(nil), w.trend...),
		InteractionCount: w.count,
	}
}

// DominantMood returns the most frequent mood of the trend, preferring the
// most recent on ties. Empty when no interaction happened yet.
func (s Snapshot) DominantMood() string {
	counts := map[string]int{}
	best, bestN := "", 0
	for i := len(s.EmotionTrend) - 1; i >= 0; i-- {
		m := s.EmotionTrend[i]
		counts[m]++
		if counts[m] > bestN {
			best, bestN = m, counts[m]
		}
	}
	return best
}

// Registry maps session ids to windows. Each window carries its own lock so
// unrelated sessions never serialize on each other.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string]*Window
}

// NewRegistry creates a registry whose windows hold capacity records.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{capacity: capacity, windows: make(map[string]*Window)}
}

// Ensure returns the window of sessionID, creating an empty one if needed.
func (r *Registry) Ensure(sessionID, ownerID string) *Window {
	r.mu.RLock()
	w := r.windows[sessionID]
	r.mu.RUnlock()
	if w != nil {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w = r.windows[sessionID]; w != nil {
		return w
	}
	w = &Window{session: sessionID, owner: ownerID, capacity: r.capacity}
	r.windows[sessionID] = w
	return w
}

// Get returns the window of sessionID if one exists.
func (r *Registry) Get(sessionID string) (*Window, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[sessionID]
	return w, ok
}

// SummaryOf returns the rolling summary, or "" without a window.
func (r *Registry) SummaryOf(sessionID string) string {
	w, ok := r.Get(sessionID)
	if !ok {
		return ""
	}
	return w.Snapshot().RollingSummary
}

// Clear drops the window and returns how many records it held.
func (r *Registry) Clear(sessionID string) int {
	r.mu.Lock()
	w, ok := r.windows[sessionID]
	delete(r.windows, sessionID)
	r.mu.Unlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Active returns the number of live windows.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}
