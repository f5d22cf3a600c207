package store

import (
	"context"
	"os"
)

// Importance bands used by Stats.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Stats holds per-owner memory statistics.
type Stats struct {
	DBPath          string         `json:"db_path"`
	DBSizeBytes     int64          `json:"db_size_bytes"`
	OwnerID         string         `json:"owner_id"`
	TotalRecords    int            `json:"total_records"`
	TotalSessions   int            `json:"total_sessions"`
	MoodHistogram   map[string]int `json:"mood_histogram"`
	ImportanceBands map[string]int `json:"importance_bands"`
	AudioSeconds    float64        `json:"audio_seconds"`
	VectorDimension int            `json:"vector_dimension,omitempty"`
}

// Stats returns statistics for ownerID.
func (s *SQLiteStore) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	st := &Stats{
		DBPath:          s.path,
		OwnerID:         ownerID,
		MoodHistogram:   map[string]int{},
		ImportanceBands: map[string]int{BandHigh: 0, BandMedium: 0, BandLow: 0},
		VectorDimension: s.dims,
	}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_records WHERE robot_id = ?`, ownerID).Scan(&st.TotalRecords); err != nil {
		return nil, storageErr("stats", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE robot_id = ?`, ownerID).Scan(&st.TotalSessions); err != nil {
		return nil, storageErr("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(json_extract(metadata, '$.audio_seconds')), 0)
		FROM memory_records WHERE robot_id = ?`, ownerID).Scan(&st.AudioSeconds); err != nil {
		return nil, storageErr("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT mood_tag, COUNT(*) FROM memory_records
		WHERE robot_id = ? GROUP BY mood_tag`, ownerID)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mood string
		var n int
		if err := rows.Scan(&mood, &n); err != nil {
			return nil, storageErr("stats", err)
		}
		st.MoodHistogram[mood] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}

	bands, err := s.db.QueryContext(ctx, `
		SELECT CASE
			WHEN importance_score >= 0.8 THEN 'high'
			WHEN importance_score >= 0.5 THEN 'medium'
			ELSE 'low' END AS band,
		COUNT(*) FROM memory_records
		WHERE robot_id = ? GROUP BY band`, ownerID)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer bands.Close()
	for bands.Next() {
		var band string
		var n int
		if err := bands.Scan(&band, &n); err != nil {
			return nil, storageErr("stats", err)
		}
		st.ImportanceBands[band] = n
	}

	return st, bands.Err()
}
