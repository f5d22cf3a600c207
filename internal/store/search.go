package store

import (
	"context"

	"github.com/rcliao/companion-brain/internal/model"
)

// SearchParams holds parameters for keyword search.
type SearchParams struct {
	OwnerID   string
	SessionID string
	Query     string
	Mood      string
	Limit     int
}

// Search finds records whose user or agent text contains the query
// substring, most recent first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.MemoryRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	q := "%" + p.Query + "%"
	where := "robot_id = ? AND (user_text LIKE ? OR ai_response LIKE ?)"
	args := []interface{}{p.OwnerID, q, q}

	if p.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, p.SessionID)
	}
	if p.Mood != "" {
		where += " AND mood_tag = ?"
		args = append(args, p.Mood)
	}
	args = append(args, limit)

	return s.queryRecords(ctx, "search",
		`SELECT `+recordColumns+` FROM memory_records
		 WHERE `+where+`
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`, args...)
}
