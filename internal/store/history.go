package store

import (
	"context"
	"slices"
	"unicode/utf8"

	"github.com/rcliao/companion-brain/internal/model"
)

// HistoryParams holds parameters for conversation history assembly.
type HistoryParams struct {
	SessionID string
	Limit     int // max records considered
	Budget    int // max chars of user+agent text, 0 means unbounded
}

// History returns the most recent records of a session that fit the char
// budget, oldest first. Newer records are packed before older ones.
func (s *SQLiteStore) History(ctx context.Context, p HistoryParams) ([]model.MemoryRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	recent, err := s.ScanBySession(ctx, p.SessionID, limit)
	if err != nil {
		return nil, err
	}

	// Greedy packing, newest first
	var packed []model.MemoryRecord
	used := 0
	for _, r := range recent {
		size := utf8.RuneCountInString(r.UserText) + utf8.RuneCountInString(r.AgentText)
		if p.Budget > 0 && used+size > p.Budget {
			break
		}
		packed = append(packed, r)
		used += size
	}

	slices.Reverse(packed)
	return packed, nil
}

// Messages converts records to alternating user/assistant messages,
// skipping empty utterances.
func Messages(records []model.MemoryRecord) []model.Message {
	var msgs []model.Message
	for _, r := range records {
		if r.UserText != "" {
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: r.UserText})
		}
		if r.AgentText != "" {
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: r.AgentText})
		}
	}
	return msgs
}
