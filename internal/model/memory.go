// Package model defines the core memory and prompt data types.
package model

import "time"

// Memory kinds.
const (
	KindInteraction = "interaction"
)

// Moods recognized by the scorer and retrieval tables.
const (
	MoodNeutral   = "neutral"
	MoodHappy     = "happy"
	MoodSad       = "sad"
	MoodAngry     = "angry"
	MoodSurprised = "surprised"
	MoodExcited   = "excited"
)

// TouchZone is a touch sensor region.
type TouchZone int

const (
	TouchHead  TouchZone = 0
	TouchBack  TouchZone = 1
	TouchChest TouchZone = 2
)

// Valid reports whether z is a known sensor region.
func (z TouchZone) Valid() bool {
	return z >= TouchHead && z <= TouchChest
}

func (z TouchZone) String() string {
	switch z {
	case TouchHead:
		return "head"
	case TouchBack:
		return "back"
	case TouchChest:
		return "chest"
	}
	return "unknown"
}

// Zone returns a pointer to z, for optional fields.
func Zone(z TouchZone) *TouchZone { return &z }

// MemoryRecord is one user/agent exchange.
type MemoryRecord struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UserText        string         `json:"user_text"`
	AgentText       string         `json:"agent_text"`
	MoodTag         string         `json:"mood_tag"`
	TouchZone       *TouchZone     `json:"touch_zone,omitempty"`
	SessionID       string         `json:"session_id"`
	ContextID       string         `json:"context_id,omitempty"`
	ImportanceScore float64        `json:"importance_score"`
	Kind            string         `json:"kind"`
	Embedding       []float32      `json:"embedding,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// HasTouch reports whether the record carries a touch zone.
func (r MemoryRecord) HasTouch() bool { return r.TouchZone != nil }

// Session is the durable mirror of a session window.
type Session struct {
	ID               string     `json:"session_id"`
	OwnerID          string     `json:"owner_id"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	InteractionCount int        `json:"interaction_count"`
	MoodSummary      string     `json:"mood_summary,omitempty"`
	ContextSummary   string     `json:"context_summary,omitempty"`
}

// SourceCounts reports how many records each retrieval branch produced.
type SourceCounts struct {
	Semantic  int `json:"semantic"`
	Context   int `json:"context"`
	Emotional int `json:"emotional"`
}

// Source names a retrieval branch.
type Source string

const (
	SourceSemantic  Source = "semantic"
	SourceContext   Source = "context"
	SourceEmotional Source = "emotional"
)

// FusionResult is the output of a memory query.
type FusionResult struct {
	Records      []MemoryRecord    `json:"records"`
	Summary      string            `json:"summary"`
	Count        int               `json:"count"`
	SourceCounts SourceCounts      `json:"source_counts"`
	Attribution  map[string]Source `json:"attribution,omitempty"`
	// Degraded is set when the query vector came from the hash fallback,
	// which makes the semantic ranking meaningless.
	Degraded     bool              `json:"degraded,omitempty"`
}

// Message is one conversation history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
