package store

import (
	"context"

	"github.com/rcliao/companion-brain/internal/model"
)

// ExportAll returns every record of the owner in insertion order.
func (s *SQLiteStore) ExportAll(ctx context.Context, ownerID string) ([]model.MemoryRecord, error) {
	return s.queryRecords(ctx, "export",
		`SELECT `+recordColumns+` FROM memory_records
		 WHERE robot_id = ?
		 ORDER BY timestamp, rowid`, ownerID)
}

// Import stores records from an export. Records whose id already exists
// are skipped. Returns how many were imported.
func (s *SQLiteStore) Import(ctx context.Context, records []model.MemoryRecord) (int, error) {
	imported := 0
	for _, r := range records {
		if r.ID != "" {
			var exists int
			err := s.db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM memory_records WHERE id = ?`, r.ID).Scan(&exists)
			if err != nil {
				return imported, storageErr("import", err)
			}
			if exists > 0 {
				continue
			}
		}
		if _, err := s.Insert(ctx, r); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
